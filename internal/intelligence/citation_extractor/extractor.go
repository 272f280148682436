package citation_extractor

import (
	"iter"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/internal/intelligence/common"
)

// ---------------------------------------------------------------------------
// Mention
// ---------------------------------------------------------------------------

// Kind classifies how a mention was recognised.
type Kind string

const (
	// KindFull is a reporter citation from the controlled vocabulary,
	// optionally led by a case name.
	KindFull Kind = "full"
	// KindCaseName is a "Party v. Party, <cite>" match whose reporter is not
	// in the vocabulary.
	KindCaseName Kind = "case_name"
	// KindShortForm is id., supra or a bare pincite.
	KindShortForm Kind = "short_form"
)

// ShortForm names the short-form variant of a KindShortForm mention.
type ShortForm string

const (
	ShortNone    ShortForm = ""
	ShortID      ShortForm = "id"
	ShortSupra   ShortForm = "supra"
	ShortPincite ShortForm = "pincite"
)

// Mention is one citation occurrence. Start and End are byte offsets into
// Document.Text with Text[Start:End] == Raw.
type Mention struct {
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Raw        string    `json:"raw"`
	Kind       Kind      `json:"kind"`
	ShortForm  ShortForm `json:"short_form,omitempty"`
	Paragraph  int       `json:"paragraph"`
	Volume     string    `json:"volume,omitempty"`
	Reporter   string    `json:"reporter,omitempty"`
	Page       string    `json:"page,omitempty"`
	Pincite    string    `json:"pincite,omitempty"`
	CaseName   string    `json:"case_name,omitempty"`
	Year       int       `json:"year,omitempty"`
	Confidence float64   `json:"confidence"`

	// Antecedent is the full citation a short form refers to.
	Antecedent *Mention `json:"antecedent,omitempty"`
}

// IsShortForm reports whether the mention is id., supra or a bare pincite.
func (m *Mention) IsShortForm() bool { return m.Kind == KindShortForm }

// Citation returns "<volume> <reporter> <page>" without pincite. Short forms
// return their antecedent's citation.
func (m *Mention) Citation() string {
	if m.Kind == KindShortForm {
		if m.Antecedent != nil {
			return m.Antecedent.Citation()
		}
		return ""
	}
	if m.Volume == "" || m.Reporter == "" || m.Page == "" {
		return ""
	}
	return m.Volume + " " + m.Reporter + " " + m.Page
}

// AdjacentCaseName is the case name found next to the mention or, for a
// short form, next to its antecedent.
func (m *Mention) AdjacentCaseName() string {
	if m.Antecedent != nil && m.Antecedent.CaseName != "" {
		return m.Antecedent.CaseName
	}
	return m.CaseName
}

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// Config tunes confidence levels and the short-form lookback.
type Config struct {
	// ParagraphWindow is how many paragraphs back a short form may reach for
	// its antecedent. Zero restricts it to the same paragraph.
	ParagraphWindow     int     `json:"paragraph_window" yaml:"paragraph_window"`
	FullConfidence      float64 `json:"full_confidence" yaml:"full_confidence"`
	CaseNameConfidence  float64 `json:"case_name_confidence" yaml:"case_name_confidence"`
	ShortFormConfidence float64 `json:"short_form_confidence" yaml:"short_form_confidence"`
	MinConfidence       float64 `json:"min_confidence" yaml:"min_confidence"`
}

// DefaultConfig returns the standard extraction settings.
func DefaultConfig() Config {
	return Config{
		ParagraphWindow:     3,
		FullConfidence:      0.9,
		CaseNameConfidence:  0.8,
		ShortFormConfidence: 0.6,
	}
}

func (c *Config) normalise() {
	d := DefaultConfig()
	if c.ParagraphWindow < 0 {
		c.ParagraphWindow = 0
	}
	if c.FullConfidence <= 0 {
		c.FullConfidence = d.FullConfidence
	}
	if c.CaseNameConfidence <= 0 {
		c.CaseNameConfidence = d.CaseNameConfidence
	}
	if c.ShortFormConfidence <= 0 {
		c.ShortFormConfidence = d.ShortFormConfidence
	}
}

// ---------------------------------------------------------------------------
// Grammar
// ---------------------------------------------------------------------------

const (
	partyWord  = `[A-Z][A-Za-z0-9.'&\-]*`
	connective = `(?:of|the|and|for|ex|rel\.|de|la|del|von|&)`
	pinPattern = `\d{1,5}(?:\s*[-–]\s*\d{1,5})?`
)

var party = partyWord + `(?:\s+(?:` + partyWord + `|` + connective + `))*`

type grammar struct {
	primary       *regexp.Regexp
	primaryPrefix *regexp.Regexp
	named         *regexp.Regexp
	idForm        *regexp.Regexp
	supra         *regexp.Regexp
	barePin       *regexp.Regexp
	year          *regexp.Regexp
}

func compileGrammar() *grammar {
	rep := common.ReporterPattern()
	primary := `(\d{1,4})\s+(` + rep + `)\s+(\d{1,5})\b(?:,\s*(?:at\s+)?(` + pinPattern + `)\b)?`
	return &grammar{
		primary:       regexp.MustCompile(`\b` + primary),
		primaryPrefix: regexp.MustCompile(`^(\d{1,4})\s+(` + rep + `)\s+\d{1,5}\b`),
		named: regexp.MustCompile(`(` + party + `)\s+vs?\.?\s+(` + party + `),\s+` +
			`(\d{1,4})\s+([A-Z][A-Za-z0-9.'\s]{0,24}?)\s+(\d{1,7})\b(?:,\s*(?:at\s+)?(` + pinPattern + `)\b)?`),
		idForm: regexp.MustCompile(`\b(?:[Ii]d|[Ii]bid)\.(?:,?\s+at\s+(` + pinPattern + `))?`),
		supra: regexp.MustCompile(`(?:(` + party + `)(?:\s+vs?\.?\s+` + party + `)?,\s+)?\bsupra\b` +
			`(?:,?\s+(?:note\s+\d+,?\s+)?at\s+(` + pinPattern + `))?`),
		barePin: regexp.MustCompile(`\b(\d{1,4})\s+(` + rep + `),?\s+at\s+(` + pinPattern + `)`),
		year:    regexp.MustCompile(`^\s*\([^()]{0,60}?\b(\d{4})\)`),
	}
}

// Leading words stripped from a matched party name.
var leadingNoise = map[string]bool{
	"see": true, "also": true, "cf.": true, "but": true, "in": true, "the": true,
	"accord": true, "compare": true, "e.g.,": true, "e.g.": true, "and": true,
	"under": true, "as": true, "citing": true, "quoting": true, "following": true,
	"contra": true, "with": true, "by": true, "id.": true, "ibid.": true,
}

// Abbreviations that end in a period without ending a sentence.
var partyAbbrev = map[string]bool{
	"inc.": true, "co.": true, "corp.": true, "bd.": true, "ltd.": true, "bros.": true,
	"educ.": true, "univ.": true, "dept.": true, "ass'n.": true, "comm'n.": true,
	"transp.": true, "ins.": true, "mfg.": true, "nat'l.": true, "int'l.": true,
	"cnty.": true, "gov't.": true, "sch.": true, "dist.": true, "mut.": true,
	"u.s.": true, "st.": true, "mr.": true, "mrs.": true, "dr.": true, "jr.": true,
}

// trimParty drops words before the last sentence break and leading citation
// signals from a party match. It returns the byte offset of the kept name
// within s.
func trimParty(s string) (string, int) {
	type tok struct {
		text  string
		start int
	}
	var toks []tok
	for i := 0; i < len(s); {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n') {
			i++
		}
		j := i
		for j < len(s) && s[j] != ' ' && s[j] != '\t' && s[j] != '\n' {
			j++
		}
		if j > i {
			toks = append(toks, tok{text: s[i:j], start: i})
		}
		i = j
	}
	if len(toks) == 0 {
		return "", 0
	}
	first := 0
	for i := 0; i < len(toks)-1; i++ {
		w := strings.ToLower(toks[i].text)
		if strings.HasSuffix(w, ".") && len(w) > 4 && !partyAbbrev[w] {
			first = i + 1
		}
	}
	for first < len(toks)-1 && leadingNoise[strings.ToLower(toks[first].text)] {
		first++
	}
	// A lone signal word is not a party.
	if leadingNoise[strings.ToLower(toks[first].text)] {
		return "", len(s)
	}
	off := toks[first].start
	return strings.TrimSpace(s[off:]), off
}

// ---------------------------------------------------------------------------
// Document
// ---------------------------------------------------------------------------

// Paragraph is one segment of a document; Start is its offset in the text.
type Paragraph struct {
	Index int
	Start int
	Text  string
}

// Document is opinion text plus its paragraph segmentation.
type Document struct {
	Text       string
	Paragraphs []Paragraph
}

// NewDocument segments text on blank lines.
func NewDocument(text string) Document {
	doc := Document{Text: text}
	idx, pos := 0, 0
	for pos <= len(text) {
		end := strings.Index(text[pos:], "\n\n")
		var seg string
		if end < 0 {
			seg, end = text[pos:], len(text)
		} else {
			seg, end = text[pos:pos+end], pos+end
		}
		if trimmed := strings.TrimSpace(seg); trimmed != "" {
			lead := strings.Index(seg, trimmed)
			doc.Paragraphs = append(doc.Paragraphs, Paragraph{Index: idx, Start: pos + lead, Text: trimmed})
			idx++
		}
		pos = end + 2
	}
	return doc
}

// NewDocumentFromParagraphs joins pre-segmented paragraphs with blank lines.
func NewDocumentFromParagraphs(paras []string) Document {
	var b strings.Builder
	doc := Document{Paragraphs: make([]Paragraph, 0, len(paras))}
	for _, p := range paras {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		doc.Paragraphs = append(doc.Paragraphs, Paragraph{Index: len(doc.Paragraphs), Start: b.Len(), Text: p})
		b.WriteString(p)
	}
	doc.Text = b.String()
	return doc
}

// Window returns the text within window bytes of [start, end), clipped to
// [lo, hi) and to rune boundaries.
func (d Document) Window(start, end, window, lo, hi int) string {
	if hi <= 0 || hi > len(d.Text) {
		hi = len(d.Text)
	}
	if lo < 0 {
		lo = 0
	}
	from, to := start-window, end+window
	if from < lo {
		from = lo
	}
	if to > hi {
		to = hi
	}
	for from > 0 && from < len(d.Text) && !utf8.RuneStart(d.Text[from]) {
		from++
	}
	for to < len(d.Text) && to > 0 && !utf8.RuneStart(d.Text[to]) {
		to--
	}
	if from >= to {
		return ""
	}
	return strings.TrimSpace(d.Text[from:to])
}

// ---------------------------------------------------------------------------
// Extractor
// ---------------------------------------------------------------------------

// Extractor recognises citation mentions. It is stateless between calls and
// safe for concurrent use.
type Extractor struct {
	cfg    Config
	g      *grammar
	logger logging.Logger
}

// NewExtractor compiles the grammar. A nil logger discards output.
func NewExtractor(cfg Config, logger logging.Logger) *Extractor {
	cfg.normalise()
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Extractor{cfg: cfg, g: compileGrammar(), logger: logger.Named("citation_extractor")}
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config { return e.cfg }

// Mentions lazily yields the mentions of doc in text order, one paragraph at
// a time. Ranging over the sequence again re-runs extraction from the start.
func (e *Extractor) Mentions(doc Document) iter.Seq[Mention] {
	return func(yield func(Mention) bool) {
		var st scanState
		for _, p := range doc.Paragraphs {
			for _, m := range e.paragraph(p, &st) {
				if m.Confidence < e.cfg.MinConfidence {
					continue
				}
				if !yield(m) {
					return
				}
			}
		}
	}
}

// Extract collects every mention of doc.
func (e *Extractor) Extract(doc Document) []Mention {
	var out []Mention
	for m := range e.Mentions(doc) {
		out = append(out, m)
	}
	return out
}

// ExtractText segments text on blank lines and extracts from it.
func (e *Extractor) ExtractText(text string) []Mention {
	return e.Extract(NewDocument(text))
}

// scanState carries full citations and the last cited authority across
// paragraphs of one document.
type scanState struct {
	history []*Mention
	last    *Mention
}

type candidate struct {
	m        Mention
	priority int
}

// paragraph returns the non-overlapping mentions of p with short forms bound
// to their antecedents.
func (e *Extractor) paragraph(p Paragraph, st *scanState) []Mention {
	cands := e.candidates(p)
	if len(cands) == 0 {
		return nil
	}

	// Earliest start wins; at one offset the longest match wins.
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i].m, cands[j].m
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if la, lb := a.End-a.Start, b.End-b.Start; la != lb {
			return la > lb
		}
		return cands[i].priority > cands[j].priority
	})

	out := make([]Mention, 0, len(cands))
	lastEnd := -1
	for _, c := range cands {
		m := c.m
		if m.Start < lastEnd {
			continue
		}
		if m.Kind == KindShortForm {
			ante := e.antecedent(&m, st.last, st.history)
			if ante == nil {
				e.logger.Debug("short form without antecedent",
					logging.Citation(m.Raw), logging.Int("paragraph", m.Paragraph))
				continue
			}
			m.Antecedent = ante
			st.last = ante
		} else {
			if prev := lastFull(out); m.CaseName == "" && prev != nil &&
				parallelGap(p.Text, prev.End-p.Start, m.Start-p.Start) {
				m.CaseName = prev.CaseName
			}
			full := m
			st.history = append(st.history, &full)
			st.last = &full
		}
		out = append(out, m)
		lastEnd = m.End
	}
	return out
}

func (e *Extractor) candidates(p Paragraph) []candidate {
	var cands []candidate
	text := p.Text
	base := p.Start

	mk := func(start, end int) Mention {
		return Mention{Start: base + start, End: base + end, Raw: text[start:end], Paragraph: p.Index}
	}
	sub := func(loc []int, i int) string {
		if loc[2*i] < 0 {
			return ""
		}
		return text[loc[2*i]:loc[2*i+1]]
	}

	scan(e.g.primary, text, func(loc []int) int {
		end := loc[1]
		pin := sub(loc, 4)
		if pin != "" && e.g.primaryPrefix.MatchString(text[loc[8]:]) {
			// "123 U.S. 456, 98 S. Ct. 12": the digits after the comma open a
			// parallel citation, not a pincite.
			end, pin = loc[7], ""
		}
		m := mk(loc[0], end)
		m.Kind = KindFull
		m.Volume = sub(loc, 1)
		m.Reporter = canonical(sub(loc, 2))
		m.Page = sub(loc, 3)
		m.Pincite = pin
		m.Year = e.year(text[end:])
		m.Confidence = e.cfg.FullConfidence
		cands = append(cands, candidate{m: m, priority: 3})
		return end
	})

	scan(e.g.named, text, func(loc []int) int {
		end := loc[1]
		pin := sub(loc, 6)
		if pin != "" && e.g.primaryPrefix.MatchString(text[loc[12]:]) {
			end, pin = loc[11], ""
		}
		name, off := trimParty(sub(loc, 1))
		if name == "" {
			return end
		}
		m := mk(loc[2]+off, end)
		m.CaseName = name + " v. " + strings.TrimSpace(sub(loc, 2))
		m.Volume = sub(loc, 3)
		m.Page = sub(loc, 5)
		m.Pincite = pin
		m.Year = e.year(text[end:])
		rep := strings.TrimSpace(sub(loc, 4))
		if c, ok := common.CanonicalReporter(rep); ok {
			m.Kind = KindFull
			m.Reporter = c
			m.Confidence = e.cfg.FullConfidence
		} else {
			m.Kind = KindCaseName
			m.Reporter = strings.Join(strings.Fields(rep), " ")
			m.Confidence = e.cfg.CaseNameConfidence
		}
		cands = append(cands, candidate{m: m, priority: 2})
		return end
	})

	for _, loc := range e.g.idForm.FindAllStringSubmatchIndex(text, -1) {
		m := mk(loc[0], loc[1])
		m.Kind, m.ShortForm = KindShortForm, ShortID
		m.Pincite = sub(loc, 1)
		m.Confidence = e.cfg.ShortFormConfidence
		cands = append(cands, candidate{m: m, priority: 1})
	}

	for _, loc := range e.g.supra.FindAllStringSubmatchIndex(text, -1) {
		start := loc[0]
		name := ""
		if loc[2] >= 0 {
			var off int
			name, off = trimParty(sub(loc, 1))
			if name == "" {
				start = loc[0] + strings.Index(text[loc[0]:loc[1]], "supra")
			} else {
				start = loc[2] + off
			}
		}
		m := mk(start, loc[1])
		m.Kind, m.ShortForm = KindShortForm, ShortSupra
		m.CaseName = name
		m.Pincite = sub(loc, 2)
		m.Confidence = e.cfg.ShortFormConfidence
		cands = append(cands, candidate{m: m, priority: 1})
	}

	for _, loc := range e.g.barePin.FindAllStringSubmatchIndex(text, -1) {
		m := mk(loc[0], loc[1])
		m.Kind, m.ShortForm = KindShortForm, ShortPincite
		m.Volume = sub(loc, 1)
		m.Reporter = canonical(sub(loc, 2))
		m.Pincite = sub(loc, 3)
		m.Confidence = e.cfg.ShortFormConfidence
		cands = append(cands, candidate{m: m, priority: 1})
	}
	return cands
}

// antecedent finds the full citation a short form refers to within the
// paragraph window. last is the most recently cited authority.
func (e *Extractor) antecedent(m *Mention, last *Mention, history []*Mention) *Mention {
	inWindow := func(a *Mention) bool {
		return a != nil && m.Paragraph-a.Paragraph <= e.cfg.ParagraphWindow
	}
	switch m.ShortForm {
	case ShortID:
		if inWindow(last) {
			return last
		}
	case ShortSupra:
		if m.CaseName == "" {
			if inWindow(last) {
				return last
			}
			return nil
		}
		want := strings.ToLower(m.CaseName)
		for i := len(history) - 1; i >= 0 && inWindow(history[i]); i-- {
			if firstParty(history[i].CaseName) == firstParty(want) {
				return history[i]
			}
		}
	case ShortPincite:
		for i := len(history) - 1; i >= 0 && inWindow(history[i]); i-- {
			h := history[i]
			if h.Volume == m.Volume && h.Reporter == m.Reporter {
				return h
			}
		}
	}
	return nil
}

// scan applies re repeatedly, resuming each search where fn says the
// accepted match ended. Offsets passed to fn are relative to text.
func scan(re *regexp.Regexp, text string, fn func(loc []int) int) {
	for pos := 0; pos < len(text); {
		loc := re.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			return
		}
		for i := range loc {
			if loc[i] >= 0 {
				loc[i] += pos
			}
		}
		next := fn(loc)
		if next <= pos {
			next = pos + 1
		}
		pos = next
	}
}

func lastFull(out []Mention) *Mention {
	if len(out) == 0 || out[len(out)-1].Kind == KindShortForm {
		return nil
	}
	return &out[len(out)-1]
}

// parallelGap reports whether only separators lie between two citations, as
// in "410 U.S. 113, 93 S. Ct. 705".
func parallelGap(text string, from, to int) bool {
	if from > to {
		return false
	}
	return strings.Trim(text[from:to], " ,;\t\n") == ""
}

func firstParty(name string) string {
	name = strings.ToLower(name)
	for _, sep := range []string{" v. ", " vs. ", " v ", " vs "} {
		if i := strings.Index(name, sep); i >= 0 {
			name = name[:i]
			break
		}
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(name), ","))
}

func (e *Extractor) year(after string) int {
	loc := e.g.year.FindStringSubmatch(after)
	if loc == nil {
		return 0
	}
	y, err := strconv.Atoi(loc[1])
	if err != nil || y < 1600 || y > 2200 {
		return 0
	}
	return y
}

func canonical(rep string) string {
	if c, ok := common.CanonicalReporter(rep); ok {
		return c
	}
	return strings.Join(strings.Fields(rep), " ")
}

//Personal.AI order the ending
