package upgrade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"upgradewatch/internal/interfaces"
	pkgerrors "upgradewatch/pkg/errors"

	"github.com/google/uuid"
)

// Error variables for err113 compliance.
var (
	ErrItemNotFound = errors.New("upgrade item not found")
)

// Backend is the Ambari side of the wizard: it serves snapshots and accepts
// item status commands.
type Backend interface {
	FetchUpgrade(ctx context.Context) (*Snapshot, error)
	FetchCurrentVersion(ctx context.Context) (string, error)
	SetItemStatus(ctx context.Context, cmd StatusCommand) error
}

// StateListener is told about every recomputed wizard state.
type StateListener interface {
	StateChanged(ctx context.Context, state State)
}

// TransitionListener is told about every acknowledged item transition.
type TransitionListener interface {
	TransitionApplied(ctx context.Context, event TransitionEvent)
}

// Manager holds the cached upgrade snapshot and is the only writer to it.
// Snapshots come from polling; the only local write is the optimistic status
// update after Ambari acknowledges a command.
type Manager struct {
	mu             sync.RWMutex
	clusterName    string
	backend        Backend
	logger         interfaces.Logger
	snapshot       *Snapshot
	currentVersion string
	loaded         bool
	manualDone     bool
	manualRef      *ItemRef

	listenersMu sync.RWMutex
	states      []StateListener
	transitions []TransitionListener

	now   func() time.Time
	newID func() string
}

// NewManager creates a manager for clusterName backed by backend.
func NewManager(clusterName string, backend Backend, logger interfaces.Logger) *Manager {
	return &Manager{
		clusterName: clusterName,
		backend:     backend,
		logger:      logger.Named("upgrade-manager"),
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
}

// ClusterName returns the cluster the manager follows.
func (m *Manager) ClusterName() string {
	return m.clusterName
}

// Subscribe registers a state listener.
func (m *Manager) Subscribe(listener StateListener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	m.states = append(m.states, listener)
}

// OnTransition registers a transition listener.
func (m *Manager) OnTransition(listener TransitionListener) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	m.transitions = append(m.transitions, listener)
}

// LoadUpgradeData refreshes the snapshot and current version from Ambari.
// On failure the cached snapshot is kept as is.
func (m *Manager) LoadUpgradeData(ctx context.Context) error {
	if m.clusterName == "" {
		return pkgerrors.ErrEmptyCluster
	}

	snapshot, err := m.backend.FetchUpgrade(ctx)
	if err != nil {
		return fmt.Errorf("failed to load upgrade data: %w", err)
	}

	current, err := m.backend.FetchCurrentVersion(ctx)
	if err != nil {
		m.logger.Warnf("Failed to load current version for cluster %s: %v", m.clusterName, err)

		current = m.CurrentVersion()
	}

	if snapshot.ClusterName == "" {
		snapshot.ClusterName = m.clusterName
	}

	if snapshot.FetchedAt.IsZero() {
		snapshot.FetchedAt = m.now()
	}

	m.mu.Lock()
	finished := snapshot.RequestStatus.IsTerminal() &&
		(m.snapshot == nil || m.snapshot.RequestID != snapshot.RequestID || !m.snapshot.RequestStatus.IsTerminal())
	m.snapshot = snapshot
	m.currentVersion = current
	m.resetManualLocked()
	state := m.stateLocked()
	m.mu.Unlock()

	m.logger.Debug("Loaded upgrade data",
		"request_id", snapshot.RequestID,
		"request_status", snapshot.RequestStatus,
		"progress", state.OverallProgress,
		"groups", len(snapshot.Groups))

	if finished {
		m.logger.Infof("Upgrade request %d on cluster %s finished with %s",
			snapshot.RequestID, m.clusterName, snapshot.RequestStatus)
	}

	m.notifyState(ctx, state)

	return nil
}

// MarkLoaded sets the loaded flag reported in the state.
func (m *Manager) MarkLoaded(loaded bool) {
	m.mu.Lock()
	m.loaded = loaded
	m.mu.Unlock()
}

// Loaded reports whether a snapshot load has succeeded since polling started.
func (m *Manager) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.loaded
}

// CurrentVersion returns the repository version the cluster currently runs.
func (m *Manager) CurrentVersion() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.currentVersion
}

// UpgradeVersion returns the version the current upgrade request targets.
func (m *Manager) UpgradeVersion() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.snapshot == nil {
		return ""
	}

	return m.snapshot.ToVersion
}

// Snapshot returns a copy of the cached snapshot, or nil before the first load.
func (m *Manager) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.snapshot.Clone()
}

// State computes the wizard state from the cached snapshot.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.stateLocked()
}

func (m *Manager) stateLocked() State {
	snapshot := m.snapshot.Clone()

	versions := Versions{Current: m.currentVersion}
	if snapshot != nil {
		versions.Upgrade = snapshot.ToVersion
	}

	state := NewState(snapshot, versions, m.manualDone)
	state.Loaded = m.loaded
	state.UpdatedAt = m.now()

	if state.ClusterName == "" {
		state.ClusterName = m.clusterName
	}

	return state
}

// ConfirmManualStep records the operator's confirmation that the current
// manual item's instructions were carried out.
func (m *Manager) ConfirmManualStep(done bool) {
	m.mu.Lock()
	m.manualDone = done

	if manual := Project(m.snapshot).ManualItem; manual != nil && done {
		ref := manual.Ref()
		m.manualRef = &ref
	} else {
		m.manualRef = nil
	}
	m.mu.Unlock()
}

// resetManualLocked drops the confirmation once the confirmed item is no
// longer the manual item.
func (m *Manager) resetManualLocked() {
	if !m.manualDone {
		return
	}

	manual := Project(m.snapshot).ManualItem
	if manual == nil || m.manualRef == nil || manual.Ref() != *m.manualRef {
		m.manualDone = false
		m.manualRef = nil
	}
}

// Continue moves a HOLDING_FAILED or HOLDING_TIMED_OUT item to FAILED or TIMED_OUT.
func (m *Manager) Continue(ctx context.Context, ref ItemRef) error {
	return m.Apply(ctx, ActionContinue, ref)
}

// Retry moves an item back to PENDING.
func (m *Manager) Retry(ctx context.Context, ref ItemRef) error {
	return m.Apply(ctx, ActionRetry, ref)
}

// Complete marks an item COMPLETED.
func (m *Manager) Complete(ctx context.Context, ref ItemRef) error {
	return m.Apply(ctx, ActionComplete, ref)
}

// Cancel marks an item FAILED.
func (m *Manager) Cancel(ctx context.Context, ref ItemRef) error {
	return m.Apply(ctx, ActionCancel, ref)
}

// Apply resolves the target status for action and dispatches it.
func (m *Manager) Apply(ctx context.Context, action Action, ref ItemRef) error {
	m.mu.RLock()
	item := m.snapshot.FindItem(ref)

	var current Status
	if item != nil {
		current = item.Status
	}

	blocked := action == ActionComplete && current == StatusHolding &&
		(!m.manualDone || m.manualRef == nil || *m.manualRef != ref)
	m.mu.RUnlock()

	if item == nil {
		return fmt.Errorf("%w: group %d stage %d", ErrItemNotFound, ref.GroupID, ref.StageID)
	}

	if blocked {
		return ErrManualStepNotConfirmed
	}

	target, err := TargetStatus(action, current)
	if err != nil {
		return err
	}

	return m.setStatus(ctx, action, ref, target)
}

// SetStatus sends a raw status command for an item. The local copy changes
// only after Ambari acknowledges it.
func (m *Manager) SetStatus(ctx context.Context, ref ItemRef, status Status) error {
	return m.setStatus(ctx, "", ref, status)
}

func (m *Manager) setStatus(ctx context.Context, action Action, ref ItemRef, status Status) error {
	m.mu.RLock()
	item := m.snapshot.FindItem(ref)

	var cmd StatusCommand

	var from Status
	if item != nil {
		from = item.Status
		cmd = StatusCommand{
			ID:        m.newID(),
			UpgradeID: item.RequestID,
			GroupID:   item.GroupID,
			StageID:   item.StageID,
			Status:    status,
		}
	}
	m.mu.RUnlock()

	if item == nil {
		return fmt.Errorf("%w: group %d stage %d", ErrItemNotFound, ref.GroupID, ref.StageID)
	}

	m.logger.Infof("Setting upgrade item %d/%d (group %d) from %s to %s",
		cmd.UpgradeID, cmd.StageID, cmd.GroupID, from, status)

	err := m.backend.SetItemStatus(ctx, cmd)
	if err != nil {
		m.logger.Errorf("Failed to set upgrade item %d/%d to %s: %v", cmd.UpgradeID, cmd.StageID, status, err)

		return fmt.Errorf("failed to set item status: %w", err)
	}

	m.mu.Lock()
	// The snapshot may have been replaced by a poll while the command was in flight.
	if local := m.snapshot.FindItem(ref); local != nil {
		local.Status = status
	}

	if action == ActionComplete {
		m.manualDone = false
		m.manualRef = nil
	}

	state := m.stateLocked()
	m.mu.Unlock()

	event := TransitionEvent{
		ID:          cmd.ID,
		ClusterName: m.clusterName,
		RequestID:   cmd.UpgradeID,
		GroupID:     cmd.GroupID,
		StageID:     cmd.StageID,
		Action:      action,
		From:        from,
		To:          status,
		At:          m.now(),
	}

	m.notifyTransition(ctx, event)
	m.notifyState(ctx, state)

	return nil
}

func (m *Manager) notifyState(ctx context.Context, state State) {
	m.listenersMu.RLock()
	listeners := append([]StateListener(nil), m.states...)
	m.listenersMu.RUnlock()

	for _, listener := range listeners {
		listener.StateChanged(ctx, state)
	}
}

func (m *Manager) notifyTransition(ctx context.Context, event TransitionEvent) {
	m.listenersMu.RLock()
	listeners := append([]TransitionListener(nil), m.transitions...)
	m.listenersMu.RUnlock()

	for _, listener := range listeners {
		listener.TransitionApplied(ctx, event)
	}
}
