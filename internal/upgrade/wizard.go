package upgrade

import (
	"math"
	"time"
)

// StatusBucket groups request statuses into what the wizard header shows.
type StatusBucket string

const (
	BucketNone       StatusBucket = ""
	BucketInProgress StatusBucket = "in_progress"
	BucketCompleted  StatusBucket = "completed"
	BucketPaused     StatusBucket = "paused"
)

//nolint:gochecknoglobals // display strings
var bucketLabels = map[StatusBucket]string{
	BucketInProgress: "Upgrading...",
	BucketCompleted:  "Upgrade Finished",
	BucketPaused:     "Upgrade Paused",
}

// Versions are the two version identifiers the wizard compares.
type Versions struct {
	Current string `json:"current"`
	Upgrade string `json:"upgrade"`
}

// State is everything the upgrade wizard renders, derived from one snapshot.
type State struct {
	Loaded                  bool         `json:"loaded"`
	ClusterName             string       `json:"cluster_name"`
	RequestID               int64        `json:"request_id"`
	Direction               Direction    `json:"direction,omitempty"`
	Versions                Versions     `json:"versions"`
	IsDowngradeAvailable    bool         `json:"is_downgrade_available"`
	OverallProgress         int          `json:"overall_progress"`
	RequestStatus           Status       `json:"request_status"`
	StatusBucket            StatusBucket `json:"status_bucket"`
	StatusLabel             string       `json:"status_label"`
	IsHoldingState          bool         `json:"is_holding_state"`
	IsSkippable             bool         `json:"is_skippable"`
	IsManualDone            bool         `json:"is_manual_done"`
	IsManualProceedDisabled bool         `json:"is_manual_proceed_disabled"`
	Groups                  []Group      `json:"groups"`
	ActiveGroup             *Group       `json:"active_group,omitempty"`
	RunningItem             *Item        `json:"running_item,omitempty"`
	FailedItem              *Item        `json:"failed_item,omitempty"`
	ManualItem              *Item        `json:"manual_item,omitempty"`
	TaskDetail              *Task        `json:"task_detail,omitempty"`
	UpdatedAt               time.Time    `json:"updated_at"`
}

// NewState computes the wizard state for snapshot. snapshot may be nil.
func NewState(snapshot *Snapshot, versions Versions, manualDone bool) State {
	projection := Project(snapshot)

	state := State{
		Versions:                versions,
		IsDowngradeAvailable:    IsDowngradeAvailable(versions.Upgrade, versions.Current),
		IsHoldingState:          IsHoldingState(projection.FailedItem),
		IsSkippable:             IsSkippable(projection.FailedItem),
		IsManualDone:            manualDone,
		IsManualProceedDisabled: !manualDone,
		Groups:                  projection.Groups,
		ActiveGroup:             projection.ActiveGroup,
		RunningItem:             projection.RunningItem,
		FailedItem:              projection.FailedItem,
		ManualItem:              projection.ManualItem,
		TaskDetail:              projection.TaskDetail,
		UpdatedAt:               time.Now(),
	}

	if snapshot != nil {
		state.ClusterName = snapshot.ClusterName
		state.RequestID = snapshot.RequestID
		state.Direction = snapshot.Direction
		state.OverallProgress = OverallProgress(snapshot.ProgressPercent)
		state.RequestStatus = snapshot.RequestStatus
		state.StatusBucket = BucketOf(snapshot.RequestStatus)
		state.StatusLabel = UpgradeStatusLabel(snapshot.RequestStatus)
	}

	return state
}

// IsDowngradeAvailable is true only while the target version is newer than the
// running one. During a downgrade the roles invert and this turns false.
func IsDowngradeAvailable(upgradeVersion, currentVersion string) bool {
	return CompareVersions(upgradeVersion, currentVersion) == 1
}

// OverallProgress floors the reported percentage, bounded to 0..100.
func OverallProgress(percent float64) int {
	if math.IsNaN(percent) || percent <= 0 {
		return 0
	}

	if percent >= 100 {
		return 100
	}

	return int(math.Floor(percent))
}

// IsHoldingState reports whether the failed item waits for an operator.
func IsHoldingState(failed *Item) bool {
	return failed != nil && failed.Status.IsHolding()
}

// IsSkippable reports whether the failed item may be bypassed.
func IsSkippable(failed *Item) bool {
	return failed != nil && failed.Skippable
}

// BucketOf classifies a request status. Unrecognized statuses map to BucketNone.
func BucketOf(status Status) StatusBucket {
	switch status {
	case StatusQueued, StatusPending, StatusInProgress:
		return BucketInProgress
	case StatusCompleted:
		return BucketCompleted
	case StatusAborted, StatusTimedOut, StatusFailed, StatusHoldingFailed, StatusHoldingTimedOut, StatusHolding:
		return BucketPaused
	default:
		return BucketNone
	}
}

// UpgradeStatusLabel returns the header label for a request status, or "".
func UpgradeStatusLabel(status Status) string {
	return bucketLabels[BucketOf(status)]
}
