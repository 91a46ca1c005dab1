package models

import "time"

// Exclusion is a conversation that must never be archived.
type Exclusion struct {
	ConversationID string `db:"conversation_id"`
	Reason         string `db:"reason"`
	Timestamp      int64  `db:"timestamp"`
}

// RunSummary describes one traversal pass. It is logged at the end of a run
// and stored in the run ledger.
type RunSummary struct {
	StartedAt     time.Time
	FinishedAt    time.Time
	Conversations int // conversations visited
	Updated       int // conversations that received new messages
	Messages      int // messages archived
	Failures      int // conversations whose stream ended with an error
}
