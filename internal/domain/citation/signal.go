package citation

import (
	"fmt"
	"strings"
)

// Signal is the treatment a citing case expresses toward a cited case.
type Signal string

const (
	SignalFollowed      Signal = "followed"
	SignalDistinguished Signal = "distinguished"
	SignalCriticized    Signal = "criticized"
	SignalQuestioned    Signal = "questioned"
	SignalOverruled     Signal = "overruled"
	SignalAbrogated     Signal = "abrogated"
	SignalCited         Signal = "cited"
	SignalUnclear       Signal = "unclear"
)

// AllSignals lists the closed signal set in descending precedence.
var AllSignals = []Signal{
	SignalOverruled,
	SignalAbrogated,
	SignalCriticized,
	SignalQuestioned,
	SignalDistinguished,
	SignalFollowed,
	SignalCited,
	SignalUnclear,
}

// Precedence tiers. A higher tier is never displaced by a lower one found in
// the same context window.
const (
	TierNone = iota
	TierNeutral
	TierPositive
	TierDistinguishing
	TierDoubting
	TierNegative
)

// Tier returns the precedence tier of s.
func (s Signal) Tier() int {
	switch s {
	case SignalOverruled, SignalAbrogated:
		return TierNegative
	case SignalCriticized, SignalQuestioned:
		return TierDoubting
	case SignalDistinguished:
		return TierDistinguishing
	case SignalFollowed:
		return TierPositive
	case SignalCited:
		return TierNeutral
	default:
		return TierNone
	}
}

// Outranks reports whether s takes precedence over other. Signals in the same
// tier do not outrank each other.
func (s Signal) Outranks(other Signal) bool {
	return s.Tier() > other.Tier()
}

// IsNegative reports overruled or abrogated.
func (s Signal) IsNegative() bool { return s.Tier() == TierNegative }

// IsCautionary reports criticized, questioned or distinguished.
func (s Signal) IsCautionary() bool {
	return s.Tier() == TierDoubting || s.Tier() == TierDistinguishing
}

// IsPositive reports followed or cited.
func (s Signal) IsPositive() bool {
	return s == SignalFollowed || s == SignalCited
}

func (s Signal) Valid() bool {
	for _, v := range AllSignals {
		if s == v {
			return true
		}
	}
	return false
}

func (s Signal) String() string { return string(s) }

// ParseSignal converts a case-insensitive name to a Signal.
func ParseSignal(v string) (Signal, error) {
	s := Signal(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown treatment signal %q", v)
	}
	return s, nil
}

//Personal.AI order the ending
