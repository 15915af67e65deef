package observability

// Metric name prefixes
const (
	MetricPrefix = "rafflepool"
)

// Metric names
const (
	// Ledger metrics
	LedgerOperationsTotal   = MetricPrefix + ".ledger.operations_total"
	LedgerOperationDuration = MetricPrefix + ".ledger.operation_duration"

	// Value movement metrics
	TransfersTotal      = MetricPrefix + ".transfers.total"
	TransferAmountTotal = MetricPrefix + ".transfers.amount_total"
	DrawsTotal          = MetricPrefix + ".draws.total"
	DrawPotSize         = MetricPrefix + ".draws.pot_size"

	// NATS metrics
	NATSMessagesReceivedTotal  = MetricPrefix + ".nats.messages_received_total"
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"

	// Database metrics
	DatabaseQueriesTotal  = MetricPrefix + ".database.queries_total"
	DatabaseQueryDuration = MetricPrefix + ".database.query_duration"
)

// Label keys
const (
	// Common labels
	LabelType      = "type"
	LabelEventType = "event_type"

	// Ledger labels
	LabelOperation = "operation"
	LabelOutcome   = "outcome"
	LabelReason    = "reason"

	// Database labels
	LabelRepository = "repository"
	LabelMethod     = "method"
)

// Operation outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)
