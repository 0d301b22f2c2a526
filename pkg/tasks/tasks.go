// Package tasks defines the messages published to Kafka.
package tasks

import "time"

// TurnRecord is the audit record emitted for every completed chat turn.
type TurnRecord struct {
	ConversationID string    `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`
	Intent         string    `json:"intent"`
	UserTask       string    `json:"user_task"`
	Response       string    `json:"response"`
}
