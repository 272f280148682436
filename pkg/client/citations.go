package client

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// DTOs
// ─────────────────────────────────────────────────────────────────────────────

// CaseSummary identifies a case in panels and treatment lists.
type CaseSummary struct {
	ID           string     `json:"id"`
	Title        string     `json:"title,omitempty"`
	CourtName    string     `json:"court_name,omitempty"`
	DecisionDate *time.Time `json:"decision_date,omitempty"`
	Citation     string     `json:"citation,omitempty"`
}

// Edge is one citing relationship.
type Edge struct {
	SourceID   string  `json:"source_id"`
	TargetID   string  `json:"target_id"`
	Signal     string  `json:"signal"`
	Confidence float64 `json:"confidence"`
	Paragraph  int     `json:"paragraph"`
	Snippet    string  `json:"snippet,omitempty"`
	Dangling   bool    `json:"dangling"`
}

// EdgeView is an edge with the case on its far side.
type EdgeView struct {
	Edge
	Neighbor CaseSummary `json:"neighbor"`
}

type Unresolved struct {
	SourceID  string `json:"source_id"`
	Raw       string `json:"raw"`
	LookupKey string `json:"lookup_key"`
	Paragraph int    `json:"paragraph"`
	Reason    string `json:"reason"`
}

// ResolvedCitation is one extracted mention.
type ResolvedCitation struct {
	Raw        string   `json:"raw"`
	Citation   string   `json:"citation"`
	CaseName   string   `json:"case_name,omitempty"`
	Kind       string   `json:"kind"`
	Paragraph  int      `json:"paragraph"`
	Status     string   `json:"status"`
	CaseID     string   `json:"case_id,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
	Signal     string   `json:"signal"`
	Confidence float64  `json:"confidence"`
}

type ResolveResult struct {
	SourceID   string             `json:"source_id,omitempty"`
	Citations  []ResolvedCitation `json:"citations"`
	Edges      []Edge             `json:"edges"`
	Unresolved []Unresolved       `json:"unresolved,omitempty"`
}

// Badge values.
const (
	BadgeGood     = "good"
	BadgeCaution  = "caution"
	BadgeNegative = "negative"
)

type Badge struct {
	CaseID string `json:"case_id"`
	Badge  string `json:"badge"`
	Color  string `json:"color"`
}

type Treatment struct {
	CitingCase CaseSummary `json:"citing_case"`
	Signal     string      `json:"signal"`
	Confidence float64     `json:"confidence"`
	Paragraph  int         `json:"paragraph"`
	Snippet    string      `json:"snippet,omitempty"`
}

type Treatments struct {
	CaseID     string      `json:"case_id"`
	Treatments []Treatment `json:"treatments"`
}

// CitatorSummary is the badge with the latest negative and positive
// treatments.
type CitatorSummary struct {
	Case               CaseSummary `json:"case"`
	Badge              string      `json:"badge"`
	Color              string      `json:"color"`
	CitingCount        int         `json:"citing_count"`
	NegativeCount      int         `json:"negative_count"`
	CautionCount       int         `json:"caution_count"`
	PositiveCount      int         `json:"positive_count"`
	NegativeTreatments []Treatment `json:"negative_treatments"`
	PositiveTreatments []Treatment `json:"positive_treatments"`
}

type CitationsPanel struct {
	Case        CaseSummary `json:"case"`
	CitingCases []EdgeView  `json:"citing_cases"`
	CitedCases  []EdgeView  `json:"cited_cases"`
	CitingCount int         `json:"citing_count"`
	CitedCount  int         `json:"cited_count"`
}

type BriefCitation struct {
	Citation string `json:"citation"`
	Raw      string `json:"raw"`
	CaseName string `json:"case_name,omitempty"`
	Status   string `json:"status"`
	CaseID   string `json:"case_id,omitempty"`
	Title    string `json:"title,omitempty"`
	Badge    string `json:"badge,omitempty"`
	Problem  string `json:"problem,omitempty"`
}

type BriefReport struct {
	Total       int             `json:"total"`
	Citations   []BriefCitation `json:"citations"`
	Problematic []BriefCitation `json:"problematic"`
	CheckedAt   time.Time       `json:"checked_at"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Client
// ─────────────────────────────────────────────────────────────────────────────

// CitationsClient covers resolution and the citator panels.
type CitationsClient struct {
	client *Client
}

// Resolve extracts and resolves the citations in text without writing
// anything. sourceID may be empty.
func (c *CitationsClient) Resolve(ctx context.Context, text, sourceID string) (*ResolveResult, error) {
	var out ResolveResult
	body := map[string]string{"text": text, "source_id": sourceID}
	if err := c.client.post(ctx, "/api/v1/citations/resolve", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *CitationsClient) BriefCheck(ctx context.Context, text string) (*BriefReport, error) {
	var out BriefReport
	if err := c.client.post(ctx, "/api/v1/briefcheck", map[string]string{"text": text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *CitationsClient) Badge(ctx context.Context, caseID string) (*Badge, error) {
	var out Badge
	if err := c.client.get(ctx, casePath(caseID, "badge"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *CitationsClient) Treatments(ctx context.Context, caseID string) (*Treatments, error) {
	var out Treatments
	if err := c.client.get(ctx, casePath(caseID, "treatments"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *CitationsClient) Citator(ctx context.Context, caseID string) (*CitatorSummary, error) {
	var out CitatorSummary
	if err := c.client.get(ctx, casePath(caseID, "citator"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Citations lists citing and cited cases; limit <= 0 uses the server default.
func (c *CitationsClient) Citations(ctx context.Context, caseID string, limit int) (*CitationsPanel, error) {
	path := casePath(caseID, "citations")
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out CitationsPanel
	if err := c.client.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func casePath(caseID, leaf string) string {
	return "/api/v1/cases/" + url.PathEscape(caseID) + "/" + leaf
}

//Personal.AI order the ending
