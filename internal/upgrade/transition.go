package upgrade

import (
	"errors"
	"fmt"
)

// Error variables for err113 compliance.
var (
	ErrUnknownAction          = errors.New("unknown upgrade item action")
	ErrContinueNotAllowed     = errors.New("continue is only allowed on HOLDING_FAILED or HOLDING_TIMED_OUT items")
	ErrManualStepNotConfirmed = errors.New("manual step has not been confirmed")
)

// Action is an operator decision on an upgrade item.
type Action string

const (
	// ActionContinue ignores a held failure and lets the upgrade proceed.
	ActionContinue Action = "continue"
	// ActionRetry re-queues the item.
	ActionRetry Action = "retry"
	// ActionComplete marks the item done, typically after a manual step.
	ActionComplete Action = "complete"
	// ActionCancel fails the item, stopping the upgrade.
	ActionCancel Action = "cancel"
)

//nolint:gochecknoglobals // fixed lookup table
var continueTargets = map[Status]Status{
	StatusHoldingFailed:   StatusFailed,
	StatusHoldingTimedOut: StatusTimedOut,
}

// ParseAction validates an action name.
func ParseAction(name string) (Action, error) {
	switch action := Action(name); action {
	case ActionContinue, ActionRetry, ActionComplete, ActionCancel:
		return action, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, name)
	}
}

// TargetStatus returns the status an item moves to when action is applied to
// an item currently in status current.
func TargetStatus(action Action, current Status) (Status, error) {
	switch action {
	case ActionContinue:
		target, ok := continueTargets[current]
		if !ok {
			return "", fmt.Errorf("%w: item is %s", ErrContinueNotAllowed, current)
		}

		return target, nil
	case ActionRetry:
		return StatusPending, nil
	case ActionComplete:
		return StatusCompleted, nil
	case ActionCancel:
		return StatusFailed, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}
