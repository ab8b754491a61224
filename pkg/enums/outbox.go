package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateBill   OutboxAggregateType = "bill"
	AggregateMember OutboxAggregateType = "member"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateBill,
	AggregateMember,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventBillCreated         OutboxEventType = "bill_created"
	EventBillRebuilt         OutboxEventType = "bill_rebuilt"
	EventBillPaymentRecorded OutboxEventType = "bill_payment_recorded"
	EventBillSettled         OutboxEventType = "bill_settled"
	EventBillEdited          OutboxEventType = "bill_edited"
	EventBillVoided          OutboxEventType = "bill_voided"
	EventBillDeleted         OutboxEventType = "bill_deleted"
	EventWalletCompensated   OutboxEventType = "wallet_compensated"
)

var validOutboxEventTypes = []OutboxEventType{
	EventBillCreated,
	EventBillRebuilt,
	EventBillPaymentRecorded,
	EventBillSettled,
	EventBillEdited,
	EventBillVoided,
	EventBillDeleted,
	EventWalletCompensated,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
