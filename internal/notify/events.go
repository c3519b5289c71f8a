package notify

// Event types emitted by the tournament engine. The notifier's allowed-events
// filter matches against these names.
const (
	EventRoundCompleted  = "round_completed"
	EventMarketsSettled  = "markets_settled"
	EventCohortCreated   = "cohort_created"
	EventBudgetExhausted = "budget_exhausted"
	EventError           = "error"
)
