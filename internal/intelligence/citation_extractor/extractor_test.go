package citation_extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor() *Extractor {
	return NewExtractor(DefaultConfig(), nil)
}

func TestExtract_FullCitationSpanCoversMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		raw      string
		reporter string
		pincite  string
	}{
		{"us reports", "See 123 U.S. 456.", "123 U.S. 456", "U.S.", ""},
		{"pincite", "Roe, as noted at 410 U.S. 113, 153 (1973), held", "410 U.S. 113, 153", "U.S.", "153"},
		{"pincite with at", "cited 347 F.3d 1234, at 1240 here", "347 F.3d 1234, at 1240", "F.3d", "1240"},
		{"district court", "relying on 12 F. Supp. 2d 345", "12 F. Supp. 2d 345", "F. Supp. 2d", ""},
		{"compact supreme court", "see 98 S.Ct. 12", "98 S.Ct. 12", "S. Ct.", ""},
		{"missing periods", "Marbury, 5 US 137 remains", "5 US 137", "U.S.", ""},
		{"second series", "the panel in 701 F.2d 10 agreed", "701 F.2d 10", "F.2d", ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc := NewDocument(tt.text)
			got := newTestExtractor().Extract(doc)
			require.Len(t, got, 1)
			m := got[0]
			assert.Equal(t, tt.raw, m.Raw)
			assert.Equal(t, tt.raw, doc.Text[m.Start:m.End])
			assert.Equal(t, KindFull, m.Kind)
			assert.Equal(t, tt.reporter, m.Reporter)
			assert.Equal(t, tt.pincite, m.Pincite)
			assert.Equal(t, 0.9, m.Confidence)
		})
	}
}

func TestExtract_SmithBrownScenario(t *testing.T) {
	t.Parallel()

	text := "Smith v. Jones, 123 U.S. 456 (1990), overruled by Brown v. Board, 98 U.S. 12 (2000)"
	doc := NewDocument(text)
	got := newTestExtractor().Extract(doc)
	require.Len(t, got, 2)

	assert.Equal(t, "Smith v. Jones, 123 U.S. 456", got[0].Raw)
	assert.Equal(t, "Smith v. Jones", got[0].CaseName)
	assert.Equal(t, "123 U.S. 456", got[0].Citation())
	assert.Equal(t, 1990, got[0].Year)

	assert.Equal(t, "Brown v. Board, 98 U.S. 12", got[1].Raw)
	assert.Equal(t, "Brown v. Board", got[1].CaseName)
	assert.Equal(t, "98 U.S. 12", got[1].Citation())
	assert.Equal(t, 2000, got[1].Year)

	for _, m := range got {
		assert.Equal(t, m.Raw, doc.Text[m.Start:m.End])
	}
}

func TestExtract_LongestMatchAtOffset(t *testing.T) {
	t.Parallel()

	got := newTestExtractor().ExtractText("Smith v. Jones, 123 F.2d 456")
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Start)
	assert.Equal(t, "F.2d", got[0].Reporter)
	assert.Equal(t, "Smith v. Jones", got[0].CaseName)
}

func TestExtract_ParallelCitation(t *testing.T) {
	t.Parallel()

	got := newTestExtractor().ExtractText("Roe v. Wade, 410 U.S. 113, 93 S. Ct. 705 (1973)")
	require.Len(t, got, 2)
	assert.Equal(t, "410 U.S. 113", got[0].Citation())
	assert.Empty(t, got[0].Pincite)
	assert.Equal(t, "93 S. Ct. 705", got[1].Citation())
	assert.Equal(t, "Roe v. Wade", got[1].CaseName)
	assert.Equal(t, 1973, got[1].Year)
}

func TestExtract_CaseNameOnly(t *testing.T) {
	t.Parallel()

	got := newTestExtractor().ExtractText("Doe v. Roe, 2019 WL 123456, was unpublished.")
	require.Len(t, got, 1)
	assert.Equal(t, KindCaseName, got[0].Kind)
	assert.Equal(t, "2019 WL 123456", got[0].Citation())
	assert.Equal(t, 0.8, got[0].Confidence)
	assert.Less(t, got[0].Confidence, 0.9)
}

func TestExtract_TrimsSignalsAndSentences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		name string
	}{
		{"See Smith v. Jones, 123 U.S. 456.", "Smith v. Jones"},
		{"This was settled by Congress. Brown v. Board, 98 U.S. 12.", "Brown v. Board"},
		{"But see Acme Co. v. Doe, 12 F.3d 9.", "Acme Co. v. Doe"},
	}
	for _, tt := range tests {
		got := newTestExtractor().ExtractText(tt.text)
		require.Len(t, got, 1, tt.text)
		assert.Equal(t, tt.name, got[0].CaseName)
		assert.Equal(t, tt.name, got[0].Raw[:len(tt.name)])
	}
}

func TestExtract_ShortForms(t *testing.T) {
	t.Parallel()

	doc := NewDocumentFromParagraphs([]string{
		"Smith v. Jones, 123 U.S. 456 (1990).",
		"Id. at 460.",
		"Smith, supra, at 470.",
		"Later, 123 U.S., at 480, repeats it.",
	})
	got := newTestExtractor().Extract(doc)
	require.Len(t, got, 4)

	full := got[0]
	assert.False(t, full.IsShortForm())

	wantForms := []ShortForm{ShortID, ShortSupra, ShortPincite}
	wantPins := []string{"460", "470", "480"}
	for i, m := range got[1:] {
		assert.True(t, m.IsShortForm())
		assert.Equal(t, wantForms[i], m.ShortForm)
		assert.Equal(t, wantPins[i], m.Pincite)
		assert.Equal(t, i+1, m.Paragraph)
		require.NotNil(t, m.Antecedent)
		assert.Equal(t, "123 U.S. 456", m.Citation())
		assert.Equal(t, "Smith v. Jones", m.AdjacentCaseName())
		assert.Less(t, m.Confidence, full.Confidence)
		assert.Equal(t, m.Raw, doc.Text[m.Start:m.End])
	}
}

func TestExtract_ShortFormOutsideWindowIsDropped(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ParagraphWindow = 0
	ex := NewExtractor(cfg, nil)

	got := ex.Extract(NewDocumentFromParagraphs([]string{
		"Smith v. Jones, 123 U.S. 456.",
		"Id. at 5.",
	}))
	require.Len(t, got, 1)
	assert.Equal(t, KindFull, got[0].Kind)

	assert.Empty(t, ex.ExtractText("Id. at 5."))
}

func TestExtract_IdFollowsLastAuthority(t *testing.T) {
	t.Parallel()

	got := newTestExtractor().ExtractText(
		"Smith v. Jones, 123 U.S. 456; Brown v. Board, 98 U.S. 12. Id. at 14.")
	require.Len(t, got, 3)
	assert.Equal(t, "98 U.S. 12", got[2].Citation())
}

func TestExtract_MalformedInputIsSilent(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"",
		"123 U.$. 456",
		"the court held in 1990 that nothing applies",
		"Smith v. Jones, supra",
	} {
		assert.NotPanics(t, func() {
			assert.Empty(t, newTestExtractor().ExtractText(text), text)
		})
	}
}

func TestMentions_LazyAndRestartable(t *testing.T) {
	t.Parallel()

	doc := NewDocumentFromParagraphs([]string{
		"See 1 U.S. 1.",
		"See 2 U.S. 2.",
		"See 3 U.S. 3.",
	})
	ex := newTestExtractor()
	seq := ex.Mentions(doc)

	var first []string
	for m := range seq {
		first = append(first, m.Citation())
	}
	var second []string
	for m := range seq {
		second = append(second, m.Citation())
	}
	assert.Equal(t, []string{"1 U.S. 1", "2 U.S. 2", "3 U.S. 3"}, first)
	assert.Equal(t, first, second)

	n := 0
	for range seq {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestNewDocument_Offsets(t *testing.T) {
	t.Parallel()

	text := "First para.\n\n  Second para here.\n\n\n\nThird."
	doc := NewDocument(text)
	require.Len(t, doc.Paragraphs, 3)
	for i, p := range doc.Paragraphs {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, p.Text, text[p.Start:p.Start+len(p.Text)])
	}
	assert.Equal(t, "Second para here.", doc.Paragraphs[1].Text)
}

func TestDocument_Window(t *testing.T) {
	t.Parallel()

	doc := NewDocument("0123456789abcdefghij")
	assert.Equal(t, "789abc", doc.Window(10, 11, 3, 0, 0)[:6])
	assert.Equal(t, "abcdef", doc.Window(10, 13, 3, 10, 16))
	assert.Equal(t, "", doc.Window(5, 5, 0, 0, 0))
}

//Personal.AI order the ending
