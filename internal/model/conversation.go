package model

// ConversationTurn is one user request and the reply it produced.
type ConversationTurn struct {
	UserText  string    `json:"user_text"`
	BotText   string    `json:"bot_text"`
	Intent    Intent    `json:"intent"`
	Timestamp LocalTime `json:"timestamp"`
}
