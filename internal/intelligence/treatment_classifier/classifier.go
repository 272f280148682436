package treatment_classifier

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sagerock/ai-law-research/internal/domain/citation"
)

// Rule maps one case-insensitive phrase pattern to a signal.
type Rule struct {
	Signal  citation.Signal
	Pattern string
}

// DefaultRules is the curated phrase table. It is a starting point that
// needs linguistic validation, not an exhaustive list.
func DefaultRules() []Rule {
	return []Rule{
		{citation.SignalOverruled, `\boverrul(?:ed|es|ing|e)\b`},
		{citation.SignalOverruled, `\bno longer good law\b`},
		{citation.SignalAbrogated, `\babrogat(?:ed|es|ing|e|ion)\b`},
		{citation.SignalAbrogated, `\bsuperseded\b`},

		{citation.SignalCriticized, `\bcritici[sz](?:ed|es|ing|e|m)\b`},
		{citation.SignalCriticized, `\b(?:declined?|declining|refused?|refusing) to follow\b`},
		{citation.SignalCriticized, `\bdisapprov(?:ed|es|ing|e)\b`},
		{citation.SignalCriticized, `\bdisagree(?:d|s)? with\b`},
		{citation.SignalCriticized, `\bwrongly decided\b`},
		{citation.SignalCriticized, `\bnot followed\b`},
		{citation.SignalQuestioned, `\bquestion(?:ed|ing)\b`},
		{citation.SignalQuestioned, `\bcall(?:ed|s)? into question\b`},
		{citation.SignalQuestioned, `\bcast(?:s|ing)? doubt\b`},
		{citation.SignalQuestioned, `\bdoubted\b`},

		{citation.SignalDistinguished, `\bdistinguish(?:ed|es|ing|able)?\b`},
		{citation.SignalDistinguished, `\binapposite\b`},
		{citation.SignalDistinguished, `\bnot controlling\b`},

		{citation.SignalFollowed, `\bfollowed\b`},
		{citation.SignalFollowed, `\b(?:we|court) follows?\b`},
		{citation.SignalFollowed, `\bfollowing (?:the )?(?:reasoning|holding|rule|approach)\b`},
		{citation.SignalFollowed, `\bin accord(?:ance)? with\b`},
		{citation.SignalFollowed, `\breaffirm(?:ed|s|ing)?\b`},
		{citation.SignalFollowed, `\brel(?:y|ies|ied|ying) (?:up)?on\b`},
		{citation.SignalFollowed, `\badopt(?:ed|s|ing)? the reasoning\b`},

		{citation.SignalCited, `\bsee\b`},
		{citation.SignalCited, `\bcf\.`},
		{citation.SignalCited, `\bcit(?:ed|ing)\b`},
		{citation.SignalCited, `\bquoting\b`},
	}
}

// A phrase immediately preceded by one of these is not counted.
var negation = regexp.MustCompile(`(?i)(?:\bnot|\bnever|n't)(?:\s+(?:been|be|yet))?\s+$`)

type compiledRule struct {
	signal citation.Signal
	re     *regexp.Regexp
}

// Classification is the detailed outcome of Classify.
type Classification struct {
	Signal citation.Signal `json:"signal"`
	Phrase string          `json:"phrase,omitempty"`
	Offset int             `json:"offset"`
}

// Classifier assigns treatment signals from context text. It is immutable
// and safe for concurrent use.
type Classifier struct {
	rules   []compiledRule
	history []compiledRule
}

// New compiles rules; it panics on an invalid pattern, as rules are static.
func New(rules []Rule) *Classifier {
	c := &Classifier{}
	for _, r := range rules {
		c.rules = append(c.rules, compiledRule{signal: r.Signal, re: regexp.MustCompile(`(?i)` + r.Pattern)})
	}
	for _, h := range historyRules {
		pattern := fmt.Sprintf(historyFrame, h.Pattern)
		c.history = append(c.history, compiledRule{signal: h.Signal, re: regexp.MustCompile(`(?i)` + pattern)})
	}
	return c
}

// NewDefault uses DefaultRules.
func NewDefault() *Classifier { return New(DefaultRules()) }

// Classify returns the signal of context. Empty context is unclear; context
// with no known phrase is cited.
func (c *Classifier) Classify(context string) citation.Signal {
	return c.ClassifyDetailed(context).Signal
}

// ClassifyDetailed returns the winning signal with the phrase that produced
// it. The highest tier wins; within a tier the earliest phrase wins.
func (c *Classifier) ClassifyDetailed(context string) Classification {
	if strings.TrimSpace(context) == "" {
		return Classification{Signal: citation.SignalUnclear, Offset: -1}
	}
	best := Classification{Signal: citation.SignalCited, Offset: -1}
	bestTier := citation.TierNone
	for _, r := range c.rules {
		for _, loc := range r.re.FindAllStringIndex(context, -1) {
			if negation.MatchString(context[:loc[0]]) {
				continue
			}
			tier := r.signal.Tier()
			if tier > bestTier || (tier == bestTier && loc[0] < best.Offset) {
				best = Classification{Signal: r.signal, Phrase: context[loc[0]:loc[1]], Offset: loc[0]}
				bestTier = tier
			}
			break
		}
	}
	return best
}

// ---------------------------------------------------------------------------
// Subsequent history
// ---------------------------------------------------------------------------

// historyRules match the text between two consecutive citations when the
// second is subsequent history of the first, as in
// "Smith v. Jones, 1 U.S. 1 (1990), overruled by Brown v. Board, 2 U.S. 2".
var historyRules = []Rule{
	{citation.SignalOverruled, `overruled`},
	{citation.SignalAbrogated, `abrogated`},
	{citation.SignalCriticized, `(?:criticized|disapproved(?: of)?)`},
	{citation.SignalQuestioned, `questioned`},
	{citation.SignalDistinguished, `distinguished`},
	{citation.SignalFollowed, `followed`},
}

const historyFrame = `^[\s,;.]*(?:\([^()]*\)[\s,;.]*)?(?:%s)(?:\s+(?:on other grounds|in part|as stated in))?\s+by[\s,:]*$`

// HistoryLink reports whether between, the text separating an earlier
// citation from a later one, marks the later case as acting on the earlier
// one. The returned signal is what the later case did.
func (c *Classifier) HistoryLink(between string) (citation.Signal, bool) {
	for _, h := range c.history {
		if h.re.MatchString(between) {
			return h.signal, true
		}
	}
	return "", false
}

//Personal.AI order the ending
