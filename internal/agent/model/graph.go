package model

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex is required as long as it is never touched outside handlers.
type AppState struct {
	UserID    string
	AgentName string

	// Accumulated total LLM cost (USD) across model invocations for this query
	TotalCostUSD float64
}

// QueryInput is one turn sent to an agent graph.
type QueryInput struct {
	UserID string `json:"user_id"`
	// Query is the full user message (conversation context plus current input).
	Query string `json:"query"`
}
