package enums

import "fmt"

// ReturnStatus tracks a return request through the staff workflow.
type ReturnStatus string

const (
	ReturnStatusDeclared  ReturnStatus = "declared"
	ReturnStatusReceived  ReturnStatus = "received"
	ReturnStatusValidated ReturnStatus = "validated"
	ReturnStatusCompleted ReturnStatus = "completed"
	ReturnStatusCancelled ReturnStatus = "cancelled"
)

var validReturnStatuses = []ReturnStatus{
	ReturnStatusDeclared,
	ReturnStatusReceived,
	ReturnStatusValidated,
	ReturnStatusCompleted,
	ReturnStatusCancelled,
}

// IsValid reports whether the value is a known ReturnStatus.
func (r ReturnStatus) IsValid() bool {
	for _, candidate := range validReturnStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// Next returns the status that follows in the one-directional workflow.
func (r ReturnStatus) Next() (ReturnStatus, bool) {
	switch r {
	case ReturnStatusDeclared:
		return ReturnStatusReceived, true
	case ReturnStatusReceived:
		return ReturnStatusValidated, true
	case ReturnStatusValidated:
		return ReturnStatusCompleted, true
	default:
		return "", false
	}
}

// IsTerminal reports whether no further transition is allowed.
func (r ReturnStatus) IsTerminal() bool {
	return r == ReturnStatusCompleted || r == ReturnStatusCancelled
}

// ParseReturnStatus converts the raw string to ReturnStatus.
func ParseReturnStatus(value string) (ReturnStatus, error) {
	for _, candidate := range validReturnStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid return status %q", value)
}
