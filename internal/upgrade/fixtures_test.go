package upgrade_test

import (
	"context"
	"errors"
	"sync"

	"upgradewatch/internal/upgrade"
)

var errBackendDown = errors.New("backend down")

// snapshotFixture is laid out oldest-first, the way Ambari returns it.
func snapshotFixture() *upgrade.Snapshot {
	return &upgrade.Snapshot{
		RequestID:       7,
		ClusterName:     "c1",
		ProgressPercent: 56.7,
		RequestStatus:   upgrade.StatusInProgress,
		Direction:       upgrade.DirectionUpgrade,
		FromVersion:     "2.2.1.0-2270",
		ToVersion:       "2.3.0.0-2557",
		Groups: []upgrade.Group{
			{
				GroupID: 1,
				Title:   "Prepare Upgrade",
				Status:  upgrade.StatusCompleted,
				Items: []upgrade.Item{
					{RequestID: 7, GroupID: 1, StageID: 1, Status: upgrade.StatusCompleted},
				},
			},
			{
				GroupID: 2,
				Title:   "ZooKeeper",
				Status:  upgrade.StatusInProgress,
				Items: []upgrade.Item{
					{RequestID: 7, GroupID: 2, StageID: 10, Status: upgrade.StatusCompleted},
					{
						RequestID: 7, GroupID: 2, StageID: 11, Status: upgrade.StatusInProgress,
						Tasks: []upgrade.Task{
							{ID: 100, StageID: 11, Status: upgrade.StatusCompleted, HostName: "h1"},
							{ID: 101, StageID: 11, Status: upgrade.StatusInProgress, HostName: "h2"},
						},
					},
				},
			},
			{
				GroupID: 3,
				Title:   "Finalize",
				Status:  upgrade.StatusPending,
				Items: []upgrade.Item{
					{RequestID: 7, GroupID: 3, StageID: 20, Status: upgrade.StatusPending},
				},
			},
		},
	}
}

func failedSnapshotFixture(status upgrade.Status) *upgrade.Snapshot {
	return &upgrade.Snapshot{
		RequestID:       9,
		ClusterName:     "c1",
		ProgressPercent: 40,
		RequestStatus:   status,
		ToVersion:       "2.3.0.0",
		Groups: []upgrade.Group{
			{
				GroupID: 1,
				Status:  status,
				Items: []upgrade.Item{
					{
						RequestID: 9, GroupID: 1, StageID: 5, Status: status, Skippable: true,
						Tasks: []upgrade.Task{
							{ID: 1, StageID: 5, Status: upgrade.StatusCompleted},
							{ID: 2, StageID: 5, Status: status, Stderr: "boom"},
						},
					},
				},
			},
		},
	}
}

func manualSnapshotFixture() *upgrade.Snapshot {
	return &upgrade.Snapshot{
		RequestID:     11,
		ClusterName:   "c1",
		RequestStatus: upgrade.StatusHolding,
		Groups: []upgrade.Group{
			{
				GroupID: 4,
				Status:  upgrade.StatusHolding,
				Items: []upgrade.Item{
					{RequestID: 11, GroupID: 4, StageID: 30, Status: upgrade.StatusHolding, Context: "Back up the Hive Metastore"},
				},
			},
		},
	}
}

type fakeBackend struct {
	mu         sync.Mutex
	snapshot   *upgrade.Snapshot
	current    string
	fetchErr   error
	versionErr error
	setErr     error
	commands   []upgrade.StatusCommand
	fetches    int
}

func (f *fakeBackend) FetchUpgrade(_ context.Context) (*upgrade.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetches++

	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	return f.snapshot.Clone(), nil
}

func (f *fakeBackend) FetchCurrentVersion(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.versionErr != nil {
		return "", f.versionErr
	}

	return f.current, nil
}

func (f *fakeBackend) SetItemStatus(_ context.Context, cmd upgrade.StatusCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setErr != nil {
		return f.setErr
	}

	f.commands = append(f.commands, cmd)

	return nil
}

func (f *fakeBackend) Commands() []upgrade.StatusCommand {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]upgrade.StatusCommand(nil), f.commands...)
}

func (f *fakeBackend) Fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.fetches
}

func (f *fakeBackend) SetFetchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetchErr = err
}

type recordingListener struct {
	mu          sync.Mutex
	states      []upgrade.State
	transitions []upgrade.TransitionEvent
}

func (r *recordingListener) StateChanged(_ context.Context, state upgrade.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states = append(r.states, state)
}

func (r *recordingListener) TransitionApplied(_ context.Context, event upgrade.TransitionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.transitions = append(r.transitions, event)
}

func (r *recordingListener) States() []upgrade.State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]upgrade.State(nil), r.states...)
}

func (r *recordingListener) Transitions() []upgrade.TransitionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]upgrade.TransitionEvent(nil), r.transitions...)
}
