package common

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Reporter vocabulary
// ---------------------------------------------------------------------------

// Reporter is one entry of the controlled reporter-abbreviation vocabulary.
// Aliases are alternate spellings that do not reduce to the canonical form by
// dropping spaces and periods alone.
type Reporter struct {
	Canonical string
	Aliases   []string
	Federal   bool
}

var reporters = []Reporter{
	{Canonical: "U.S.", Aliases: []string{"U.S. Reports"}, Federal: true},
	{Canonical: "S. Ct.", Aliases: []string{"Sup. Ct."}, Federal: true},
	{Canonical: "L. Ed.", Federal: true},
	{Canonical: "L. Ed. 2d", Federal: true},
	{Canonical: "F.", Federal: true},
	{Canonical: "F.2d", Federal: true},
	{Canonical: "F.3d", Federal: true},
	{Canonical: "F.4th", Federal: true},
	{Canonical: "F. Supp.", Federal: true},
	{Canonical: "F. Supp. 2d", Federal: true},
	{Canonical: "F. Supp. 3d", Federal: true},
	{Canonical: "F. App'x", Aliases: []string{"Fed. Appx.", "Fed. App'x", "F. Appx."}, Federal: true},
	{Canonical: "F.R.D.", Federal: true},
	{Canonical: "B.R.", Federal: true},
	{Canonical: "Fed. Cl.", Federal: true},
	{Canonical: "T.C.", Federal: true},
	{Canonical: "A."},
	{Canonical: "A.2d"},
	{Canonical: "A.3d"},
	{Canonical: "N.E."},
	{Canonical: "N.E.2d"},
	{Canonical: "N.E.3d"},
	{Canonical: "N.W."},
	{Canonical: "N.W.2d"},
	{Canonical: "S.E."},
	{Canonical: "S.E.2d"},
	{Canonical: "S.W."},
	{Canonical: "S.W.2d"},
	{Canonical: "S.W.3d"},
	{Canonical: "So."},
	{Canonical: "So. 2d"},
	{Canonical: "So. 3d"},
	{Canonical: "P."},
	{Canonical: "P.2d"},
	{Canonical: "P.3d"},
	{Canonical: "Cal. Rptr."},
	{Canonical: "Cal. Rptr. 2d"},
	{Canonical: "Cal. Rptr. 3d"},
	{Canonical: "Cal."},
	{Canonical: "Cal. 2d"},
	{Canonical: "Cal. 3d"},
	{Canonical: "Cal. 4th"},
	{Canonical: "Cal. 5th"},
	{Canonical: "N.Y.S."},
	{Canonical: "N.Y.S.2d"},
	{Canonical: "N.Y.S.3d"},
	{Canonical: "N.Y."},
	{Canonical: "N.Y.2d"},
	{Canonical: "N.Y.3d"},
	{Canonical: "Ill. 2d"},
	{Canonical: "Ill. Dec."},
	{Canonical: "Mass."},
	{Canonical: "Pa."},
	{Canonical: "Wash. 2d"},
	{Canonical: "Wis. 2d"},
}

// Reporters returns a copy of the vocabulary.
func Reporters() []Reporter {
	out := make([]Reporter, len(reporters))
	copy(out, reporters)
	return out
}

var (
	vocabOnce    sync.Once
	vocabByKey   map[string]string
	vocabPattern string
)

func buildVocabulary() {
	vocabByKey = make(map[string]string, len(reporters)*2)
	var spellings []string
	for _, r := range reporters {
		vocabByKey[ReporterKey(r.Canonical)] = r.Canonical
		spellings = append(spellings, r.Canonical)
		for _, a := range r.Aliases {
			vocabByKey[ReporterKey(a)] = r.Canonical
			spellings = append(spellings, a)
		}
	}
	// Longer spellings first so "F. Supp. 2d" is tried before "F.".
	sort.SliceStable(spellings, func(i, j int) bool { return len(spellings[i]) > len(spellings[j]) })
	parts := make([]string, 0, len(spellings))
	seen := make(map[string]bool, len(spellings))
	for _, s := range spellings {
		p := flexiblePattern(s)
		if seen[p] {
			continue
		}
		seen[p] = true
		parts = append(parts, p)
	}
	vocabPattern = "(?:" + strings.Join(parts, "|") + ")"
}

// flexiblePattern turns a spelling into a regex tolerant of missing periods
// and of spacing variance between abbreviation tokens.
func flexiblePattern(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '.':
			b.WriteString(`\.?`)
			if i+1 < len(s) && s[i+1] != ' ' {
				b.WriteString(`\s?`)
			}
		case ' ':
			b.WriteString(`\s*`)
		case '\'':
			b.WriteString(`'?`)
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}

// ReporterKey reduces an abbreviation to lower-case letters and digits, the
// form under which spacing and punctuation variants compare equal.
func ReporterKey(abbr string) string {
	var b strings.Builder
	b.Grow(len(abbr))
	for _, r := range strings.ToLower(abbr) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CanonicalReporter maps any known spelling of a reporter to its canonical
// abbreviation.
func CanonicalReporter(abbr string) (string, bool) {
	vocabOnce.Do(buildVocabulary)
	c, ok := vocabByKey[ReporterKey(abbr)]
	return c, ok
}

// ReporterPattern is a non-capturing regex alternation matching every
// vocabulary spelling.
func ReporterPattern() string {
	vocabOnce.Do(buildVocabulary)
	return vocabPattern
}

//Personal.AI order the ending
