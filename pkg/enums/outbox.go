package enums

// OutboxEventType enumerates the domain events emitted through the
// transactional outbox.
type OutboxEventType string

const (
	EventOrderCreated       OutboxEventType = "order.created"
	EventOrderStatusChanged OutboxEventType = "order.status_changed"
	EventPaymentCaptured    OutboxEventType = "payment.captured"
	EventPaymentFailed      OutboxEventType = "payment.failed"
)

// OutboxDLQErrorReason explains why an event stopped being retried.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

// OutboxAggregateType enumerates the aggregates events attach to.
type OutboxAggregateType string

const (
	AggregateOrder              OutboxAggregateType = "order"
	AggregatePaymentTransaction OutboxAggregateType = "payment_transaction"
)
