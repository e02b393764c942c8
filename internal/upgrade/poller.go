package upgrade

import (
	"context"
	"sync"
	"time"

	"upgradewatch/internal/interfaces"
)

// DefaultPollInterval matches Ambari's background operations refresh.
const DefaultPollInterval = 6 * time.Second

// Loader refreshes upgrade data and tracks whether a load has succeeded.
type Loader interface {
	LoadUpgradeData(ctx context.Context) error
	MarkLoaded(loaded bool)
}

// Poller refreshes upgrade data on a repeating timer. At most one timer is
// armed per poller. Refreshes are fired without waiting for the previous one.
type Poller struct {
	loader      Loader
	clusterName string
	interval    time.Duration
	logger      interfaces.Logger

	mu         sync.Mutex
	timer      *time.Timer
	cancel     context.CancelFunc
	generation uint64
}

// NewPoller creates a poller. A zero interval uses DefaultPollInterval.
func NewPoller(loader Loader, clusterName string, interval time.Duration, logger interfaces.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Poller{
		loader:      loader,
		clusterName: clusterName,
		interval:    interval,
		logger:      logger.Named("upgrade-poller"),
	}
}

// Interval returns the refresh interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Start loads upgrade data once and then keeps refreshing it until Stop or
// until ctx is done. It does nothing and returns false when no cluster name
// is set. Calling Start on a running poller restarts it.
func (p *Poller) Start(ctx context.Context) bool {
	if p.clusterName == "" {
		p.logger.Info("Cluster name not set, upgrade polling not started")

		return false
	}

	p.mu.Lock()
	p.stopLocked()

	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.generation++
	gen := p.generation
	p.mu.Unlock()

	p.logger.Infof("Polling upgrade data for cluster %s every %v", p.clusterName, p.interval)

	go p.load(pollCtx, gen)

	p.arm(pollCtx, gen)

	return true
}

// Stop cancels the armed timer and marks the data as not loaded. Loads that
// are already running finish on their own; their results no longer flip the
// loaded flag.
func (p *Poller) Stop() {
	p.mu.Lock()
	stopped := p.stopLocked()
	if stopped {
		p.loader.MarkLoaded(false)
	}
	p.mu.Unlock()

	if stopped {
		p.logger.Info("Upgrade polling stopped")
	}
}

// Running reports whether a timer is armed.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.timer != nil
}

func (p *Poller) stopLocked() bool {
	if p.cancel == nil {
		return false
	}

	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}

	p.cancel()
	p.cancel = nil
	p.generation++

	return true
}

// arm schedules the next refresh unless the poller moved on to a newer generation.
func (p *Poller) arm(ctx context.Context, gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.generation || ctx.Err() != nil {
		return
	}

	p.timer = time.AfterFunc(p.interval, func() {
		go p.load(ctx, gen)
		p.arm(ctx, gen)
	})
}

func (p *Poller) load(ctx context.Context, gen uint64) {
	if ctx.Err() != nil {
		return
	}

	err := p.loader.LoadUpgradeData(ctx)
	if err != nil {
		p.logger.Warnf("Failed to refresh upgrade data for cluster %s: %v", p.clusterName, err)

		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen == p.generation {
		p.loader.MarkLoaded(true)
	}
}
