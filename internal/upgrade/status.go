package upgrade

import "strings"

// Status is the state Ambari reports for an upgrade request, group, item or task.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusQueued          Status = "QUEUED"
	StatusInProgress      Status = "IN_PROGRESS"
	StatusHolding         Status = "HOLDING"
	StatusHoldingFailed   Status = "HOLDING_FAILED"
	StatusHoldingTimedOut Status = "HOLDING_TIMED_OUT"
	StatusFailed          Status = "FAILED"
	StatusTimedOut        Status = "TIMED_OUT"
	StatusAborted         Status = "ABORTED"
	StatusCompleted       Status = "COMPLETED"
)

const holdingPrefix = "HOLDING"

//nolint:gochecknoglobals // fixed vocabulary
var (
	knownStatuses = map[Status]struct{}{
		StatusPending:         {},
		StatusQueued:          {},
		StatusInProgress:      {},
		StatusHolding:         {},
		StatusHoldingFailed:   {},
		StatusHoldingTimedOut: {},
		StatusFailed:          {},
		StatusTimedOut:        {},
		StatusAborted:         {},
		StatusCompleted:       {},
	}

	failedStatuses = map[Status]struct{}{
		StatusHoldingFailed:   {},
		StatusHoldingTimedOut: {},
		StatusFailed:          {},
		StatusTimedOut:        {},
	}

	activeStatuses = map[Status]struct{}{
		StatusHoldingFailed:   {},
		StatusHoldingTimedOut: {},
		StatusFailed:          {},
		StatusTimedOut:        {},
		StatusHolding:         {},
		StatusInProgress:      {},
	}
)

// IsKnown reports whether s belongs to the status vocabulary.
func (s Status) IsKnown() bool {
	_, ok := knownStatuses[s]

	return ok
}

// IsFailed reports membership in the failed set. Unknown statuses are never failed.
func (s Status) IsFailed() bool {
	_, ok := failedStatuses[s]

	return ok
}

// IsActive reports membership in the active set (failed plus HOLDING and IN_PROGRESS).
func (s Status) IsActive() bool {
	_, ok := activeStatuses[s]

	return ok
}

// IsHolding reports whether s waits for an operator decision.
func (s Status) IsHolding() bool {
	return strings.Contains(string(s), holdingPrefix)
}

// IsTerminal reports whether Ambari will not move s any further on its own.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAborted
}

// FailedStatuses returns the failed set in a stable order.
func FailedStatuses() []Status {
	return []Status{StatusHoldingFailed, StatusHoldingTimedOut, StatusFailed, StatusTimedOut}
}

// ActiveStatuses returns the active set in a stable order.
func ActiveStatuses() []Status {
	return append(FailedStatuses(), StatusHolding, StatusInProgress)
}
