package enums

import "fmt"

// OutboxEventType names the domain events persisted through the outbox.
type OutboxEventType string

const (
	EventPackageOpened       OutboxEventType = "package.opened"
	EventPackageOrderAdded   OutboxEventType = "package.order_added"
	EventPackageClosingSoon  OutboxEventType = "package.closing_soon"
	EventPackageClosed       OutboxEventType = "package.closed"
	EventPackageShipped      OutboxEventType = "package.shipped"
	EventReturnDeclared      OutboxEventType = "return.declared"
	EventReturnStatusChanged OutboxEventType = "return.status_changed"
	EventReturnCompleted     OutboxEventType = "return.completed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPackageOpened,
	EventPackageOrderAdded,
	EventPackageClosingSoon,
	EventPackageClosed,
	EventPackageShipped,
	EventReturnDeclared,
	EventReturnStatusChanged,
	EventReturnCompleted,
}

// IsValid reports whether the value is a known OutboxEventType.
func (o OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts the raw string to OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}

// OutboxAggregateType scopes outbox events to their owning aggregate.
type OutboxAggregateType string

const (
	AggregateOpenPackage   OutboxAggregateType = "open_package"
	AggregateReturnRequest OutboxAggregateType = "return_request"
)

var validOutboxAggregateTypes = []OutboxAggregateType{
	AggregateOpenPackage,
	AggregateReturnRequest,
}

// IsValid reports whether the value is a known OutboxAggregateType.
func (o OutboxAggregateType) IsValid() bool {
	for _, candidate := range validOutboxAggregateTypes {
		if candidate == o {
			return true
		}
	}
	return false
}
