package ingestion

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	t.Parallel()

	in := "  First\x00 line\t\twith   gaps \r\n\r\n\n\n Second   paragraph  "
	assert.Equal(t, "First line with gaps\n\nSecond paragraph", CleanText(in, 0))
	assert.Equal(t, "", CleanText("", 10))

	// NFKC folds the full-width digits often produced by OCR.
	assert.Equal(t, "123 U.S. 456", CleanText("１２３ U.S. ４５６", 0))
}

func TestCleanText_TruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()

	s := strings.Repeat("é", 10)
	out := CleanText(s, 5)
	assert.True(t, utf8.ValidString(out))
	assert.LessOrEqual(t, len(out), 5)
}

func TestContentHash_StableAndSensitive(t *testing.T) {
	t.Parallel()

	a := ContentHash("opinion text")
	assert.Len(t, a, 64)
	assert.Equal(t, a, ContentHash("opinion text"))
	assert.NotEqual(t, a, ContentHash("opinion text."))
}

func TestRecord_ToCase(t *testing.T) {
	t.Parallel()

	r := Record{
		ID:           " smith ",
		Title:        "Smith v. Jones",
		CourtID:      "scotus",
		CourtName:    "Supreme Court",
		DecisionDate: "1990-05-01",
		Citations:    []string{"123 U.S. 456"},
		Text:         "Para one.\n\nPara   two.",
	}
	c := r.ToCase(0)
	assert.Equal(t, "smith", c.ID)
	require.NotNil(t, c.DecisionDate)
	assert.Equal(t, 1990, c.DecisionDate.Year())
	assert.Equal(t, "Para one.\n\nPara two.", c.Content)
	assert.Equal(t, ContentHash(c.Content), c.ContentHash)
	assert.Equal(t, "scotus", r.Court().ID)

	assert.Equal(t, []string{"Para one.", "Para two."}, r.ParagraphsOf(c.Content))
}

func TestRecord_ExplicitParagraphs(t *testing.T) {
	t.Parallel()

	r := Record{ID: "x", Paragraphs: []string{" a  b ", "", "c"}}
	c := r.ToCase(0)
	assert.Equal(t, "a b\n\nc", c.Content)
	assert.Equal(t, []string{"a b", "c"}, r.ParagraphsOf(c.Content))
	assert.Nil(t, (&Record{}).Court())
}

func TestParseDecisionDate(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, ParseDecisionDate("2000-01-02"))
	assert.NotNil(t, ParseDecisionDate("2000-01-02T10:00:00Z"))
	assert.NotNil(t, ParseDecisionDate("May 17, 1954"))
	assert.Nil(t, ParseDecisionDate("someday"))
	assert.Nil(t, ParseDecisionDate(""))
}

func TestChunkWords(t *testing.T) {
	t.Parallel()

	text := strings.TrimSpace(strings.Repeat("w ", 25))
	chunks := ChunkWords(text, 10, 2)
	require.Len(t, chunks, 3)
	assert.Len(t, strings.Fields(chunks[0]), 10)
	assert.Len(t, strings.Fields(chunks[2]), 9)

	assert.Nil(t, ChunkWords("", 10, 2))
	assert.Len(t, ChunkWords("a b c", 10, 50), 1)
}

func TestIdentifySections(t *testing.T) {
	t.Parallel()

	text := "Caption line\nSYLLABUS\nshort summary\nOPINION\nthe court holds\nDISSENT\nI disagree"
	sections := IdentifySections(text)
	assert.Equal(t, "Caption line", sections[SectionBody])
	assert.Contains(t, sections[SectionSyllabus], "short summary")
	assert.Contains(t, sections[SectionOpinion], "the court holds")
	assert.NotContains(t, sections[SectionOpinion], "disagree")
	assert.Contains(t, sections[SectionDissenting], "I disagree")

	plain := IdentifySections("no headings here")
	assert.Equal(t, map[string]string{SectionBody: "no headings here"}, plain)
}

func TestChunkCase(t *testing.T) {
	t.Parallel()

	chunks := ChunkCase("c1", "OPINION\n"+strings.Repeat("word ", 30), 20, 5)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, "c1", c.CaseID)
		assert.Equal(t, i, c.Index)
		assert.Equal(t, SectionOpinion, c.Section)
	}
}
