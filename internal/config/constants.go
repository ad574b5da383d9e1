package config

type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateOwned     JobState = "owned"
	JobStateSucceeded JobState = "succeeded"
	JobStateDead      JobState = "dead"
)

var AllJobStates = []JobState{JobStatePending, JobStateOwned, JobStateSucceeded, JobStateDead}

const (
	QueueRenderCalendar = "render_calendar_pdf"
	QueueOrderEmail     = "send_order_email"
	QueueSalesAggregate = "aggregate_sales_stats"
)

// DefaultMaxAttempts applies to queue types missing from QueueDefaults.
const DefaultMaxAttempts = 5

type QueueDefault struct {
	Priority    int
	MaxAttempts int
}

// QueueDefaults is the per-queue-type lookup used when an enqueuer does not
// supply priority or max attempts.
var QueueDefaults = map[string]QueueDefault{
	QueueRenderCalendar: {Priority: 10, MaxAttempts: 5},
	QueueOrderEmail:     {Priority: 5, MaxAttempts: 8},
	QueueSalesAggregate: {Priority: 1, MaxAttempts: 3},
}

// DefaultsFor returns the defaults for queueType, falling back to priority 0
// and DefaultMaxAttempts.
func DefaultsFor(queueType string) QueueDefault {
	if d, ok := QueueDefaults[queueType]; ok {
		return d
	}
	return QueueDefault{Priority: 0, MaxAttempts: DefaultMaxAttempts}
}
