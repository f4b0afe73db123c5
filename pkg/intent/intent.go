// Package intent maps free-text descriptions onto knowledge base patterns by
// keyword counting.
package intent

import (
	"strings"

	"github.com/rmax-ai/ghbridge/pkg/knowledge"
)

// Score is the keyword match count of one intent rule.
type Score struct {
	Rule    int    `json:"rule"` // registration index
	Pattern string `json:"pattern"`
	Matches int    `json:"matches"`
}

// Classifier scores descriptions against the intent rules of the current
// knowledge base snapshot.
type Classifier struct {
	holder *knowledge.Holder
}

func New(holder *knowledge.Holder) *Classifier {
	return &Classifier{holder: holder}
}

// Classify returns the pattern of the rule with the most keyword hits.
// Ties go to the rule registered first; ok is false when no rule scores.
func (c *Classifier) Classify(description string) (string, bool) {
	return Best(c.holder.Current().IntentRules(), description)
}

// ClassifyAll returns every rule with a non-zero score, in registration order.
func (c *Classifier) ClassifyAll(description string) []Score {
	return ScoreRules(c.holder.Current().IntentRules(), description)
}

// Best picks the winning rule from rules for description.
func Best(rules []knowledge.IntentRule, description string) (string, bool) {
	var best *Score
	scores := ScoreRules(rules, description)
	for i := range scores {
		// strictly greater keeps the earlier rule on a tie
		if best == nil || scores[i].Matches > best.Matches {
			best = &scores[i]
		}
	}
	if best == nil {
		return "", false
	}
	return best.Pattern, true
}

// ScoreRules counts, per rule, the description tokens found in its keyword set.
// A token counts once per occurrence. Zero scores are dropped.
func ScoreRules(rules []knowledge.IntentRule, description string) []Score {
	tokens := Tokenize(description)
	if len(tokens) == 0 {
		return nil
	}

	var scores []Score
	for i, rule := range rules {
		keywords := make(map[string]struct{}, len(rule.Keywords))
		for _, k := range rule.Keywords {
			keywords[k] = struct{}{}
		}
		n := 0
		for _, tok := range tokens {
			if _, ok := keywords[tok]; ok {
				n++
			}
		}
		if n > 0 {
			scores = append(scores, Score{Rule: i, Pattern: rule.Pattern, Matches: n})
		}
	}
	return scores
}

// Tokenize lower-cases description and splits it on whitespace and
// punctuation. Hyphens stay inside tokens.
func Tokenize(description string) []string {
	return strings.FieldsFunc(strings.ToLower(description), knowledge.IsKeywordSeparator)
}
