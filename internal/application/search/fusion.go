package search

import (
	"sort"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
	searchdomain "github.com/sagerock/ai-law-research/internal/domain/search"
)

// RankedList is one source's candidates, best first.
type RankedList struct {
	Source     searchdomain.Source
	Candidates []searchdomain.Candidate
}

// Fuse merges ranked lists by weighted reciprocal rank fusion:
//
//	score(d) = Σ_s w_s / (k + rank_s(d))
//
// with 1-based ranks. A case absent from a list gets nothing from it, and a
// case listed twice counts at its best rank. Ties break by case id so the
// output is deterministic.
func Fuse(lists []RankedList, weights searchdomain.Weights, k int) []searchdomain.Result {
	if k <= 0 {
		k = 60
	}
	byID := make(map[string]*searchdomain.Result)
	for _, l := range lists {
		w := weights.For(l.Source)
		if w <= 0 {
			continue
		}
		rank := 0
		for _, c := range l.Candidates {
			if c.CaseID == "" {
				continue
			}
			rank++
			r, ok := byID[c.CaseID]
			if !ok {
				r = &searchdomain.Result{CaseID: c.CaseID, Ranks: make(map[searchdomain.Source]int, len(lists))}
				byID[c.CaseID] = r
			}
			if _, seen := r.Ranks[l.Source]; seen {
				continue
			}
			r.Ranks[l.Source] = rank
			r.FusedScore += w / float64(k+rank)
		}
	}

	out := make([]searchdomain.Result, 0, len(byID))
	for _, r := range byID {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		return out[i].CaseID < out[j].CaseID
	})
	return out
}

// badgeFactor discounts the authority of cases that are no longer good law.
func badgeFactor(b citation.Badge) float64 {
	switch b {
	case citation.BadgeNegative:
		return 0.1
	case citation.BadgeCaution:
		return 0.5
	}
	return 1
}

// AuthorityList orders entries by badge-weighted in-degree. Entries with no
// inbound citations carry no authority and are dropped.
func AuthorityList(entries []citation.AuthorityEntry) []searchdomain.Candidate {
	out := make([]searchdomain.Candidate, 0, len(entries))
	for _, e := range entries {
		if e.InDegree <= 0 {
			continue
		}
		out = append(out, searchdomain.Candidate{CaseID: e.CaseID, Score: float64(e.InDegree) * badgeFactor(e.Badge)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CaseID < out[j].CaseID
	})
	return out
}

//Personal.AI order the ending
