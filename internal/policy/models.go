package policy

import "time"

type Scope string

const (
	ScopeUser   Scope = "USER"
	ScopeGroup  Scope = "GROUP"
	ScopeGlobal Scope = "GLOBAL"
)

// GlobalSubject is the subject id shared by every sender under ScopeGlobal.
const GlobalSubject = "*"

// Policy restricts when a rule may fire. A rule has at most one policy;
// a missing policy never denies.
type Policy struct {
	RuleID     string           `bson:"rule_id" json:"rule_id"`
	Scope      Scope            `bson:"scope" json:"scope"`
	Whitelist  []string         `bson:"whitelist,omitempty" json:"whitelist,omitempty"`
	Blacklist  []string         `bson:"blacklist,omitempty" json:"blacklist,omitempty"`
	RateLimit  RateLimitPolicy  `bson:"rate_limit" json:"rate_limit"`
	TimeWindow TimeWindowPolicy `bson:"time_window" json:"time_window"`
	Role       RolePolicy       `bson:"role" json:"role"`
	Cooldown   CooldownPolicy   `bson:"cooldown" json:"cooldown"`
	UpdatedAt  time.Time        `bson:"updated_at" json:"updated_at"`
}

type RateLimitPolicy struct {
	Enabled       bool `bson:"enabled" json:"enabled"`
	MaxRequests   int  `bson:"max_requests" json:"max_requests"`
	WindowSeconds int  `bson:"window_seconds" json:"window_seconds"`
}

// TimeWindowPolicy allows messages between Start and End ("HH:MM",
// inclusive) on the listed ISO weekdays (1=Monday..7=Sunday). An empty
// weekday list allows every day. Start after End spans midnight.
type TimeWindowPolicy struct {
	Enabled  bool   `bson:"enabled" json:"enabled"`
	Start    string `bson:"start" json:"start"`
	End      string `bson:"end" json:"end"`
	Weekdays []int  `bson:"weekdays,omitempty" json:"weekdays,omitempty"`
}

type RolePolicy struct {
	Enabled      bool     `bson:"enabled" json:"enabled"`
	AllowedRoles []string `bson:"allowed_roles" json:"allowed_roles"`
}

type CooldownPolicy struct {
	Enabled bool `bson:"enabled" json:"enabled"`
	Seconds int  `bson:"seconds" json:"seconds"`
}

// SubjectID resolves the id a policy is enforced against.
func (p *Policy) SubjectID(conversationID, senderID string) string {
	switch p.Scope {
	case ScopeGroup:
		return conversationID
	case ScopeGlobal:
		return GlobalSubject
	default:
		return senderID
	}
}

func (p *Policy) scope() Scope {
	if p.Scope == "" {
		return ScopeUser
	}
	return p.Scope
}
