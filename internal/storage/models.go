package storage

import "time"

// Interaction is one advisory exchange kept for diagnosis. The reference
// index itself is never persisted; only the question/answer record is.
type Interaction struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	Answer      string    `json:"answer"`
	Outcome     string    `json:"outcome"`
	ContextUsed int       `json:"context_used"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}
