package rules

import (
	"sort"
	"time"

	"replybot/internal/matcher"
)

// ErrorPolicy decides what the router does when a rule's policy denies a
// message.
type ErrorPolicy string

const (
	ErrorPolicyStop     ErrorPolicy = "STOP"
	ErrorPolicyContinue ErrorPolicy = "CONTINUE"
	ErrorPolicyLogOnly  ErrorPolicy = "LOG_ONLY"
)

type Rule struct {
	ID             string
	ConversationID string
	Name           string
	Priority       int // 1..1000, lower wins
	MatchType      matcher.MatchType
	Pattern        string
	ReplyTemplate  string
	Enabled        bool
	ErrorPolicy    ErrorPolicy
	Condition      string // optional CEL guard
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Conversation struct {
	ID      string
	Name    string
	Enabled bool
}

// Match is the winning rule together with the conversation it belongs to.
type Match struct {
	Rule         Rule
	Conversation Conversation
}

func ruleLess(a, b Rule) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// orderRules returns rules ordered by priority then creation time, copying
// only when the input is out of order.
func orderRules(rules []Rule) []Rule {
	less := func(i, j int) bool { return ruleLess(rules[i], rules[j]) }
	if sort.SliceIsSorted(rules, less) {
		return rules
	}

	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool { return ruleLess(ordered[i], ordered[j]) })
	return ordered
}
