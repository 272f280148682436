package citator

import (
	"context"
	"strings"
	"time"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
	"github.com/sagerock/ai-law-research/internal/intelligence/citation_resolver"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// BadgeView is the badge of one case as served to clients.
type BadgeView struct {
	CaseID string         `json:"case_id"`
	Badge  citation.Badge `json:"badge"`
	Color  string         `json:"color"`
}

// Summary is the citator panel: the badge plus the most recent negative and
// positive treatments.
type Summary struct {
	Case            citation.CaseSummary       `json:"case"`
	Badge           citation.Badge             `json:"badge"`
	Color           string                     `json:"color"`
	CitingCount     int                        `json:"citing_count"`
	NegativeCount   int                        `json:"negative_count"`
	CautionCount    int                        `json:"caution_count"`
	PositiveCount   int                        `json:"positive_count"`
	NegativeSignals []citation.TreatmentRecord `json:"negative_treatments"`
	PositiveSignals []citation.TreatmentRecord `json:"positive_treatments"`
}

// CitationsPanel lists the cases citing and cited by a case.
type CitationsPanel struct {
	Case       citation.CaseSummary `json:"case"`
	CitingBy   []citation.EdgeView  `json:"citing_cases"`
	Cites      []citation.EdgeView  `json:"cited_cases"`
	CitingByN  int                  `json:"citing_count"`
	CitesCount int                  `json:"cited_count"`
}

// CaseView is a stored case with its current badge.
type CaseView struct {
	*citation.Case
	Badge citation.Badge `json:"badge"`
	Color string         `json:"color"`
}

// BriefCitation is one distinct citation found in a brief.
type BriefCitation struct {
	Citation string                   `json:"citation"`
	Raw      string                   `json:"raw"`
	CaseName string                   `json:"case_name,omitempty"`
	Status   citation_resolver.Status `json:"status"`
	CaseID   string                   `json:"case_id,omitempty"`
	Title    string                   `json:"title,omitempty"`
	Badge    citation.Badge           `json:"badge,omitempty"`
	Problem  string                   `json:"problem,omitempty"`
}

// BriefReport checks every citation of a brief.
type BriefReport struct {
	Total       int             `json:"total"`
	Citations   []BriefCitation `json:"citations"`
	Problematic []BriefCitation `json:"problematic"`
	CheckedAt   time.Time       `json:"checked_at"`
}

// Problem labels used in brief reports.
const (
	ProblemNegative   = "negative treatment"
	ProblemCaution    = "cautionary treatment"
	ProblemUnresolved = "not found in corpus"
	ProblemAmbiguous  = "ambiguous citation"
)

// GetBadge serves the cached badge. A case with no inbound edges, or an id
// the corpus does not know, is good law.
func (s *serviceImpl) GetBadge(ctx context.Context, caseID string) (*BadgeView, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, errors.InvalidParam("case id is required")
	}
	badge, err := s.badges.Badge(ctx, caseID, func(ctx context.Context) (citation.Badge, error) {
		start := time.Now()
		signals, err := s.store.InboundSignals(ctx, caseID)
		if err != nil {
			return "", err
		}
		s.metrics.BadgeComputeDuration.WithLabelValues("read").Observe(time.Since(start).Seconds())
		return citation.ComputeBadge(signals), nil
	})
	if err != nil {
		return nil, err
	}
	return &BadgeView{CaseID: caseID, Badge: badge, Color: badge.Color()}, nil
}

func (s *serviceImpl) GetTreatments(ctx context.Context, caseID string) ([]citation.TreatmentRecord, error) {
	if strings.TrimSpace(caseID) == "" {
		return nil, errors.InvalidParam("case id is required")
	}
	views, err := s.store.EdgesInto(ctx, caseID, 0)
	if err != nil {
		return nil, err
	}
	return citation.TreatmentsFromEdges(views), nil
}

func (s *serviceImpl) Citator(ctx context.Context, caseID string) (*Summary, error) {
	c, err := s.requireCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	treatments, err := s.GetTreatments(ctx, caseID)
	if err != nil {
		return nil, err
	}
	badge, err := s.GetBadge(ctx, caseID)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Case:            c.Summary(),
		Badge:           badge.Badge,
		Color:           badge.Color,
		CitingCount:     len(treatments),
		NegativeSignals: []citation.TreatmentRecord{},
		PositiveSignals: []citation.TreatmentRecord{},
	}
	for _, t := range treatments {
		switch {
		case t.Signal.IsNegative():
			sum.NegativeCount++
		case t.Signal.IsCautionary():
			sum.CautionCount++
		case t.Signal.IsPositive():
			sum.PositiveCount++
		}
		switch t.Signal {
		case citation.SignalOverruled, citation.SignalAbrogated, citation.SignalCriticized, citation.SignalQuestioned:
			if len(sum.NegativeSignals) < s.cfg.PanelSize {
				sum.NegativeSignals = append(sum.NegativeSignals, t)
			}
		case citation.SignalFollowed, citation.SignalCited:
			if len(sum.PositiveSignals) < s.cfg.PanelSize {
				sum.PositiveSignals = append(sum.PositiveSignals, t)
			}
		}
	}
	return sum, nil
}

func (s *serviceImpl) CaseCitations(ctx context.Context, caseID string, limit int) (*CitationsPanel, error) {
	c, err := s.requireCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	into, err := s.store.EdgesInto(ctx, caseID, limit)
	if err != nil {
		return nil, err
	}
	from, err := s.store.EdgesFrom(ctx, caseID, limit)
	if err != nil {
		return nil, err
	}
	nInto, nFrom, err := s.store.CountEdges(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return &CitationsPanel{
		Case:       c.Summary(),
		CitingBy:   nonNil(into),
		Cites:      nonNil(from),
		CitingByN:  nInto,
		CitesCount: nFrom,
	}, nil
}

// BriefCheck resolves every distinct citation of a brief and flags those that
// are negative, cautionary, unknown or ambiguous.
func (s *serviceImpl) BriefCheck(ctx context.Context, text string) (*BriefReport, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.InvalidParam("brief text is required")
	}
	report := &BriefReport{Citations: []BriefCitation{}, Problematic: []BriefCitation{}, CheckedAt: time.Now().UTC()}

	seen := make(map[string]int)
	var ids []string
	for _, m := range s.extractor.ExtractText(text) {
		cite := m.Citation()
		if cite == "" {
			continue
		}
		key := citation_resolver.Normalize(cite)
		if _, dup := seen[key]; dup {
			continue
		}
		res := s.resolver.Resolve(&m)
		bc := BriefCitation{
			Citation: cite,
			Raw:      m.Raw,
			CaseName: m.AdjacentCaseName(),
			Status:   res.Status,
			CaseID:   res.CaseID,
		}
		switch res.Status {
		case citation_resolver.StatusUnresolved:
			bc.Problem = ProblemUnresolved
		case citation_resolver.StatusAmbiguous:
			bc.Problem = ProblemAmbiguous
		default:
			ids = append(ids, res.CaseID)
		}
		seen[key] = len(report.Citations)
		report.Citations = append(report.Citations, bc)
	}

	if len(ids) > 0 {
		cases, err := s.store.GetCases(ctx, ids)
		if err != nil {
			return nil, err
		}
		for i := range report.Citations {
			bc := &report.Citations[i]
			if bc.CaseID == "" {
				continue
			}
			if c, ok := cases[bc.CaseID]; ok {
				bc.Title = c.Title
			}
			badge, err := s.GetBadge(ctx, bc.CaseID)
			if err != nil {
				return nil, err
			}
			bc.Badge = badge.Badge
			switch badge.Badge {
			case citation.BadgeNegative:
				bc.Problem = ProblemNegative
			case citation.BadgeCaution:
				bc.Problem = ProblemCaution
			}
		}
	}

	for _, bc := range report.Citations {
		if bc.Problem != "" {
			report.Problematic = append(report.Problematic, bc)
		}
	}
	report.Total = len(report.Citations)
	return report, nil
}

// GetCase serves one stored case with its badge.
func (s *serviceImpl) GetCase(ctx context.Context, caseID string) (*CaseView, error) {
	c, err := s.requireCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	view, err := s.GetBadge(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return &CaseView{Case: c, Badge: view.Badge, Color: view.Color}, nil
}

func (s *serviceImpl) Stats(ctx context.Context) (citation.CorpusStats, error) {
	return s.store.Stats(ctx)
}

func (s *serviceImpl) requireCase(ctx context.Context, caseID string) (*citation.Case, error) {
	if strings.TrimSpace(caseID) == "" {
		return nil, errors.InvalidParam("case id is required")
	}
	c, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.CaseNotFound(caseID)
		}
		return nil, err
	}
	return c, nil
}

func nonNil(v []citation.EdgeView) []citation.EdgeView {
	if v == nil {
		return []citation.EdgeView{}
	}
	return v
}

//Personal.AI order the ending
