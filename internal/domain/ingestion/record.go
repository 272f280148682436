package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
)

// Record is one line of a bulk case feed.
type Record struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	CourtID      string   `json:"court_id"`
	CourtName    string   `json:"court_name"`
	Jurisdiction string   `json:"jurisdiction"`
	DecisionDate string   `json:"decision_date"`
	Citations    []string `json:"citations"`
	Text         string   `json:"text"`

	// Paragraphs, when supplied, override the blank-line segmentation of Text.
	Paragraphs []string `json:"paragraphs,omitempty"`
}

// FeedItem is a record with its zero-based position in the feed.
type FeedItem struct {
	Offset int64
	Record Record
	Err    error
}

// FeedSource opens a named feed for streaming.
type FeedSource interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "January 2, 2006"}

// ParseDecisionDate accepts the date layouts seen in feeds. Unparseable or
// empty input yields nil.
func ParseDecisionDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// ToCase converts the record to a Case with cleaned content and its hash.
func (r *Record) ToCase(maxBytes int) *citation.Case {
	content := CleanText(r.Text, maxBytes)
	if content == "" && len(r.Paragraphs) > 0 {
		content = CleanText(strings.Join(r.Paragraphs, "\n\n"), maxBytes)
	}
	return &citation.Case{
		ID:           strings.TrimSpace(r.ID),
		Title:        strings.TrimSpace(r.Title),
		CourtID:      r.CourtID,
		CourtName:    r.CourtName,
		Jurisdiction: r.Jurisdiction,
		DecisionDate: ParseDecisionDate(r.DecisionDate),
		Citations:    r.Citations,
		Content:      content,
		ContentHash:  ContentHash(content),
	}
}

// Court returns the court carried by the record, or nil.
func (r *Record) Court() *citation.Court {
	if r.CourtID == "" {
		return nil
	}
	return &citation.Court{ID: r.CourtID, Name: r.CourtName, Jurisdiction: r.Jurisdiction}
}

// ─────────────────────────────────────────────────────────────────────────────
// Text hygiene
// ─────────────────────────────────────────────────────────────────────────────

var (
	inlineSpace = regexp.MustCompile(`[ \t\f\v\r]+`)
	blankLines  = regexp.MustCompile(`\n\s*\n+`)
)

// CleanText strips NUL bytes, applies NFKC, collapses runs of inline
// whitespace, keeps paragraph breaks as a single blank line and truncates to
// maxBytes on a rune boundary. maxBytes <= 0 disables truncation.
func CleanText(s string, maxBytes int) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\x00", "")
	s = norm.NFKC.String(s)
	s = inlineSpace.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	s = strings.TrimSpace(strings.Join(lines, "\n"))

	if maxBytes > 0 && len(s) > maxBytes {
		cut := maxBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}

// ContentHash is the hex sha256 of cleaned content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// SplitParagraphs segments cleaned text on blank lines.
func SplitParagraphs(content string) []string {
	if content == "" {
		return nil
	}
	raw := strings.Split(content, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParagraphsOf returns the record's paragraphs, falling back to the
// blank-line segmentation of content.
func (r *Record) ParagraphsOf(content string) []string {
	if len(r.Paragraphs) > 0 {
		out := make([]string, 0, len(r.Paragraphs))
		for _, p := range r.Paragraphs {
			if p = CleanText(p, 0); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return SplitParagraphs(content)
}

//Personal.AI order the ending
