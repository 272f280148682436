package citation

// Badge is the aggregate treatment status of a case.
type Badge string

const (
	BadgeGood     Badge = "good"
	BadgeCaution  Badge = "caution"
	BadgeNegative Badge = "negative"
)

// Color returns the traffic-light name used by the UI.
func (b Badge) Color() string {
	switch b {
	case BadgeNegative:
		return "red"
	case BadgeCaution:
		return "yellow"
	default:
		return "green"
	}
}

func (b Badge) String() string { return string(b) }

// ComputeBadge reduces a case's inbound signals to a badge. It is pure and
// order-independent; an empty set yields BadgeGood.
func ComputeBadge(signals []Signal) Badge {
	badge := BadgeGood
	for _, s := range signals {
		switch {
		case s.IsNegative():
			return BadgeNegative
		case s.IsCautionary():
			badge = BadgeCaution
		}
	}
	return badge
}

// ComputeBadgeFromEdges is ComputeBadge over the signals of inbound edges.
func ComputeBadgeFromEdges(edges []EdgeView) Badge {
	signals := make([]Signal, 0, len(edges))
	for _, e := range edges {
		signals = append(signals, e.Signal)
	}
	return ComputeBadge(signals)
}

//Personal.AI order the ending
