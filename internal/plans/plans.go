// Package plans holds the static plan tiers, their per-action monthly limits
// and monthly credit grants, and the pure permit/deny evaluator.
package plans

import (
	"errors"
	"strings"
)

type Plan string

const (
	Free       Plan = "free"
	Starter    Plan = "starter"
	Pro        Plan = "pro"
	Enterprise Plan = "enterprise"
)

type Action string

const (
	ActionUploads   Action = "uploads"
	ActionComments  Action = "comments"
	ActionPlays     Action = "plays"
	ActionPlaylists Action = "playlists"
)

// Unlimited marks an action with no monthly cap.
const Unlimited = -1

var ErrInvalidAction = errors.New("invalid action: must be one of uploads, comments, plays, playlists")

// Limits is the monthly allowance of each action for one plan.
type Limits map[Action]int

var planLimits = map[Plan]Limits{
	Free: {
		ActionUploads:   5,
		ActionComments:  50,
		ActionPlays:     500,
		ActionPlaylists: 3,
	},
	Starter: {
		ActionUploads:   25,
		ActionComments:  500,
		ActionPlays:     Unlimited,
		ActionPlaylists: 20,
	},
	Pro: {
		ActionUploads:   100,
		ActionComments:  Unlimited,
		ActionPlays:     Unlimited,
		ActionPlaylists: 100,
	},
	Enterprise: {
		ActionUploads:   Unlimited,
		ActionComments:  Unlimited,
		ActionPlays:     Unlimited,
		ActionPlaylists: Unlimited,
	},
}

var monthlyCredits = map[Plan]int64{
	Free:       0,
	Starter:    100,
	Pro:        500,
	Enterprise: 2000,
}

// Parse normalizes a stored plan string. Unknown values fall back to Free.
func Parse(s string) Plan {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := planLimits[p]; ok {
		return p
	}
	return Free
}

// Valid reports whether s names a known plan exactly.
func Valid(s string) bool {
	_, ok := planLimits[Plan(s)]
	return ok
}

// ParseAction validates a requested action against the fixed enumeration.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	switch a {
	case ActionUploads, ActionComments, ActionPlays, ActionPlaylists:
		return a, nil
	}
	return "", ErrInvalidAction
}

// LimitsFor returns the limits of a plan; early access lifts free users to starter.
func LimitsFor(plan Plan, earlyAccess bool) Limits {
	if plan == Free && earlyAccess {
		return planLimits[Starter]
	}
	if l, ok := planLimits[plan]; ok {
		return l
	}
	return planLimits[Free]
}

// MonthlyCredits is the amount the monthly grant adds for a plan string.
func MonthlyCredits(plan string) int64 {
	return monthlyCredits[Parse(plan)]
}

// Decision is the permit/deny result returned to callers.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Action    Action `json:"action"`
	Plan      Plan   `json:"plan"`
	Used      int64  `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int64  `json:"remaining"`
	Unlimited bool   `json:"unlimited"`
	Reason    string `json:"reason,omitempty"`
}

// Evaluate decides whether one more action fits the plan's monthly allowance.
// It performs no I/O.
func Evaluate(plan Plan, earlyAccess bool, action Action, used int64) Decision {
	if used < 0 {
		used = 0
	}
	limit := LimitsFor(plan, earlyAccess)[action]
	d := Decision{
		Action: action,
		Plan:   plan,
		Used:   used,
		Limit:  limit,
	}
	if limit == Unlimited {
		d.Allowed = true
		d.Unlimited = true
		d.Remaining = -1
		return d
	}

	remaining := int64(limit) - used
	if remaining < 0 {
		remaining = 0
	}
	d.Remaining = remaining
	d.Allowed = remaining > 0
	if !d.Allowed {
		d.Reason = "monthly " + string(action) + " limit reached for plan " + string(plan)
	}
	return d
}
