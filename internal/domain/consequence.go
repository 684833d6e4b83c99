package domain

import "time"

// Consequence is the outcome applied when the user returns to the app
// after backgrounding it mid-session.
type Consequence int

const (
	// ConsequenceNone: an accidental app-switcher glance, ignored.
	ConsequenceNone Consequence = iota
	// ConsequenceUrgeResisted: a short leave counted as positive feedback.
	ConsequenceUrgeResisted
	// ConsequenceSoftWarning: a longer leave, warned but tolerated.
	ConsequenceSoftWarning
	// ConsequenceAbandon: the session is force-ended.
	ConsequenceAbandon
)

func (c Consequence) String() string {
	switch c {
	case ConsequenceNone:
		return "none"
	case ConsequenceUrgeResisted:
		return "urge_resisted"
	case ConsequenceSoftWarning:
		return "soft_warning"
	case ConsequenceAbandon:
		return "abandon"
	}
	return "unknown"
}

// Away-duration bucket boundaries. Buckets use an inclusive lower and
// exclusive upper bound, so an away of exactly 5s counts as a resisted
// urge and exactly 60s force-ends the session.
const (
	NegligibleAwayLimit  = 5 * time.Second
	UrgeAwayLimit        = 30 * time.Second
	SoftWarningAwayLimit = 60 * time.Second
	MaxToleratedLeaves   = 3
)

// awayRule is one row of the classification table. Rows are evaluated
// in order; a row matches when the away duration is below its limit
// and, where maxLeaves is set, the leave count is below it.
type awayRule struct {
	awayBelow   time.Duration
	leavesBelow int // 0 means any leave count
	outcome     Consequence
}

var awayRules = []awayRule{
	{awayBelow: NegligibleAwayLimit, outcome: ConsequenceNone},
	{awayBelow: UrgeAwayLimit, outcome: ConsequenceUrgeResisted},
	{awayBelow: SoftWarningAwayLimit, leavesBelow: MaxToleratedLeaves, outcome: ConsequenceSoftWarning},
}

// ClassifyAway maps an away duration and the leave count (including the
// leave being classified) to its consequence. A single long absence or
// a pattern of repeated leaves ends the session; anything milder gets a
// graduated response.
func ClassifyAway(away time.Duration, leaves int) Consequence {
	for _, r := range awayRules {
		if away >= r.awayBelow {
			continue
		}
		if r.leavesBelow > 0 && leaves >= r.leavesBelow {
			continue
		}
		return r.outcome
	}
	return ConsequenceAbandon
}
