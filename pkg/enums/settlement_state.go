package enums

import "fmt"

// SettlementState tracks a persisted settlement attempt.
type SettlementState string

const (
	// SettlementStateSettling is written before the table is touched.
	SettlementStateSettling SettlementState = "settling"
	// SettlementStateClosed means the history entry and table clear committed.
	SettlementStateClosed SettlementState = "closed"
	// SettlementStateDeducting means one caller has claimed the ingredient deduction.
	SettlementStateDeducting SettlementState = "deducting"
	// SettlementStateCompleted means ingredient deduction has run.
	SettlementStateCompleted SettlementState = "completed"
)

var validSettlementStates = []SettlementState{
	SettlementStateSettling,
	SettlementStateClosed,
	SettlementStateDeducting,
	SettlementStateCompleted,
}

func (s SettlementState) String() string {
	return string(s)
}

func (s SettlementState) IsValid() bool {
	for _, candidate := range validSettlementStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s SettlementState) CanTransitionTo(next SettlementState) bool {
	switch s {
	case SettlementStateSettling:
		return next == SettlementStateClosed || next == SettlementStateCompleted
	case SettlementStateClosed:
		return next == SettlementStateDeducting
	case SettlementStateDeducting:
		return next == SettlementStateDeducting || next == SettlementStateCompleted
	default:
		return false
	}
}

func ParseSettlementState(value string) (SettlementState, error) {
	for _, candidate := range validSettlementStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid settlement state %q", value)
}
