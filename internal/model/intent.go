package model

import "strings"

// Intent is the routing label chosen for a user request.
type Intent string

const (
	IntentGenerate Intent = "generate"
	IntentExplain  Intent = "explain"
	IntentChat     Intent = "chat"
)

// ParseIntent maps free model output onto an Intent by substring match.
// "generate" wins over "explain"; anything else is chat.
func ParseIntent(s string) Intent {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.Contains(s, string(IntentGenerate)):
		return IntentGenerate
	case strings.Contains(s, string(IntentExplain)):
		return IntentExplain
	default:
		return IntentChat
	}
}
