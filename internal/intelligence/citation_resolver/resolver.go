package citation_resolver

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
	"github.com/sagerock/ai-law-research/internal/infrastructure/monitoring/logging"
	"github.com/sagerock/ai-law-research/internal/intelligence/citation_extractor"
	"github.com/sagerock/ai-law-research/internal/intelligence/common"
	"github.com/sagerock/ai-law-research/pkg/errors"
)

// ---------------------------------------------------------------------------
// Normalisation
// ---------------------------------------------------------------------------

var (
	citeShape = regexp.MustCompile(`^(\d{1,5})\s*([A-Za-z][A-Za-z0-9.'\s]*?)\s*(\d{1,7})\b`)
	spaces    = regexp.MustCompile(`\s+`)
)

// Normalize reduces a citation string to its lookup key: whitespace
// collapsed, reporter unified through the alias table, pincite dropped.
// "123 US 456, 460" and "123 U. S. 456" both yield "123 U.S. 456".
// It returns "" for empty input.
func Normalize(cite string) string {
	s := strings.TrimSpace(spaces.ReplaceAllString(norm.NFKC.String(cite), " "))
	if s == "" {
		return ""
	}
	m := citeShape.FindStringSubmatch(s)
	if m == nil {
		return strings.ToLower(s)
	}
	rep := strings.TrimSpace(m[2])
	if c, ok := common.CanonicalReporter(rep); ok {
		rep = c
	} else {
		rep = common.ReporterKey(rep)
	}
	return m[1] + " " + rep + " " + m[3]
}

// KeysFor normalises every citation of a case, dropping empties and
// duplicates.
func KeysFor(cites []string) []string {
	out := make([]string, 0, len(cites))
	seen := make(map[string]bool, len(cites))
	for _, c := range cites {
		k := Normalize(c)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

var nameStop = map[string]bool{
	"v": true, "vs": true, "the": true, "of": true, "and": true, "inc": true, "co": true,
	"corp": true, "llc": true, "ltd": true, "et": true, "al": true, "in": true, "re": true,
	"ex": true, "rel": true, "a": true, "an": true,
}

// NameTokens lower-cases a case name into its significant words.
func NameTokens(name string) []string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f != "" && !nameStop[f] {
			out = append(out, f)
		}
	}
	return out
}

func nameKey(name string) string {
	return strings.Join(NameTokens(name), " ")
}

// overlap counts tokens of a present in b.
func overlap(a, b []string) int {
	set := make(map[string]bool, len(b))
	for _, t := range b {
		set[t] = true
	}
	n := 0
	for _, t := range a {
		if set[t] {
			n++
			delete(set, t)
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Index snapshot
// ---------------------------------------------------------------------------

// Index is an immutable lookup snapshot from normalised citation to case ids.
type Index struct {
	byKey   map[string][]string
	byName  map[string][]string
	names   map[string][]string
	builtAt time.Time
}

// IndexBuilder accumulates case refs into a new Index. It is not safe for
// concurrent use.
type IndexBuilder struct {
	idx *Index
}

// NewIndexBuilder starts an empty snapshot.
func NewIndexBuilder() *IndexBuilder {
	return &IndexBuilder{idx: &Index{
		byKey:  make(map[string][]string),
		byName: make(map[string][]string),
		names:  make(map[string][]string),
	}}
}

// Add registers every citation of ref, parallel citations included.
func (b *IndexBuilder) Add(ref citation.CaseRef) {
	if ref.ID == "" {
		return
	}
	for _, k := range KeysFor(ref.Citations) {
		b.idx.byKey[k] = appendUnique(b.idx.byKey[k], ref.ID)
	}
	if ref.Title != "" {
		toks := NameTokens(ref.Title)
		b.idx.names[ref.ID] = toks
		if nk := strings.Join(toks, " "); nk != "" {
			b.idx.byName[nk] = appendUnique(b.idx.byName[nk], ref.ID)
		}
	}
}

// Build freezes the snapshot. The builder must not be used afterwards.
func (b *IndexBuilder) Build() *Index {
	b.idx.builtAt = time.Now().UTC()
	idx := b.idx
	b.idx = nil
	return idx
}

// NewIndex builds a snapshot from refs.
func NewIndex(refs []citation.CaseRef) *Index {
	b := NewIndexBuilder()
	for _, r := range refs {
		b.Add(r)
	}
	return b.Build()
}

// Size is the number of distinct citation keys.
func (i *Index) Size() int { return len(i.byKey) }

// BuiltAt is when the snapshot was frozen.
func (i *Index) BuiltAt() time.Time { return i.builtAt }

// Lookup returns the case ids registered under a normalised key.
func (i *Index) Lookup(key string) []string {
	ids := i.byKey[key]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

func appendUnique(ids []string, id string) []string {
	for _, x := range ids {
		if x == id {
			return ids
		}
	}
	return append(ids, id)
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// Status is the outcome of resolving one mention.
type Status string

const (
	StatusResolved   Status = "resolved"
	StatusUnresolved Status = "unresolved"
	StatusAmbiguous  Status = "ambiguous"
)

// Method records which lookup produced a resolution.
type Method string

const (
	MethodCitation Method = "citation"
	MethodTieBreak Method = "case_name_tiebreak"
	MethodCaseName Method = "case_name"
)

// Resolution is the result for one mention. Raw and Key are kept for
// reconciliation when Status is not resolved.
type Resolution struct {
	Status     Status   `json:"status"`
	CaseID     string   `json:"case_id,omitempty"`
	Raw        string   `json:"raw"`
	Key        string   `json:"key,omitempty"`
	Method     Method   `json:"method,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
}

// Resolved reports whether a single case was chosen.
func (r Resolution) Resolved() bool { return r.Status == StatusResolved }

// Err maps a non-resolved outcome onto the error taxonomy.
func (r Resolution) Err() error {
	switch r.Status {
	case StatusUnresolved:
		return errors.Unresolved(r.Raw)
	case StatusAmbiguous:
		return errors.Ambiguous(r.Raw, len(r.Candidates))
	}
	return nil
}

// Reason converts a non-resolved status into the persisted reason.
func (r Resolution) Reason() citation.UnresolvedReason {
	if r.Status == StatusAmbiguous {
		return citation.ReasonAmbiguous
	}
	return citation.ReasonNoMatch
}

// RefSource streams case refs for an index rebuild.
type RefSource interface {
	ScanCitationRefs(ctx context.Context, fn func(citation.CaseRef) error) error
}

// Resolver maps mentions to case ids against the current snapshot. Readers
// never lock; Rebuild swaps in a new snapshot atomically.
type Resolver struct {
	current atomic.Pointer[Index]
	logger  logging.Logger
}

// NewResolver starts with an empty snapshot.
func NewResolver(logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	r := &Resolver{logger: logger.Named("citation_resolver")}
	r.current.Store(NewIndexBuilder().Build())
	return r
}

// Snapshot returns the index in use.
func (r *Resolver) Snapshot() *Index { return r.current.Load() }

// Swap installs idx and returns the previous snapshot.
func (r *Resolver) Swap(idx *Index) *Index {
	if idx == nil {
		idx = NewIndexBuilder().Build()
	}
	return r.current.Swap(idx)
}

// Rebuild streams every case from src into a fresh snapshot and installs it.
// On error the previous snapshot stays in place.
func (r *Resolver) Rebuild(ctx context.Context, src RefSource) (*Index, error) {
	start := time.Now()
	b := NewIndexBuilder()
	cases := 0
	err := src.ScanCitationRefs(ctx, func(ref citation.CaseRef) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		b.Add(ref)
		cases++
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "rebuild citation index")
	}
	idx := b.Build()
	r.current.Store(idx)
	r.logger.Info("citation index rebuilt",
		logging.Int("cases", cases),
		logging.Int("keys", idx.Size()),
		logging.Duration("took", time.Since(start)))
	return idx, nil
}

// Resolve maps a mention using its citation and any adjacent case name.
func (r *Resolver) Resolve(m *citation_extractor.Mention) Resolution {
	res := r.ResolveCitation(m.Citation(), m.AdjacentCaseName())
	res.Raw = m.Raw
	return res
}

// ResolveCitation maps a citation string. adjacentName breaks ties between
// several cases sharing the citation; without a unique best overlap the
// result is ambiguous rather than a guess.
func (r *Resolver) ResolveCitation(cite, adjacentName string) Resolution {
	idx := r.current.Load()
	res := Resolution{Raw: cite, Key: Normalize(cite)}

	var ids []string
	if res.Key != "" {
		ids = idx.byKey[res.Key]
	}
	switch {
	case len(ids) == 1:
		res.Status, res.CaseID, res.Method = StatusResolved, ids[0], MethodCitation
		return res
	case len(ids) > 1:
		if id, ok := idx.tieBreak(ids, adjacentName); ok {
			res.Status, res.CaseID, res.Method = StatusResolved, id, MethodTieBreak
			return res
		}
		res.Status = StatusAmbiguous
		res.Candidates = sortedCopy(ids)
		r.logger.Debug("ambiguous citation",
			logging.Citation(cite), logging.Strings("candidates", res.Candidates))
		return res
	}

	if nk := nameKey(adjacentName); nk != "" {
		switch named := idx.byName[nk]; len(named) {
		case 1:
			res.Status, res.CaseID, res.Method = StatusResolved, named[0], MethodCaseName
			return res
		case 0:
		default:
			res.Status = StatusAmbiguous
			res.Candidates = sortedCopy(named)
			return res
		}
	}
	res.Status = StatusUnresolved
	r.logger.Debug("unresolved citation", logging.Citation(cite))
	return res
}

// tieBreak picks the candidate whose title shares the most tokens with name,
// provided that maximum is unique and non-zero.
func (i *Index) tieBreak(ids []string, name string) (string, bool) {
	want := NameTokens(name)
	if len(want) == 0 {
		return "", false
	}
	best, bestScore, tied := "", 0, false
	for _, id := range ids {
		s := overlap(want, i.names[id])
		switch {
		case s > bestScore:
			best, bestScore, tied = id, s, false
		case s == bestScore && s > 0:
			tied = true
		}
	}
	if bestScore == 0 || tied {
		return "", false
	}
	return best, true
}

func sortedCopy(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}

//Personal.AI order the ending
