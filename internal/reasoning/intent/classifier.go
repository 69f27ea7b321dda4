// Package intent classifies free-text operator queries into the fixed
// intent taxonomy that drives reasoning strategy selection.
//
// Classification is pattern-table based and fully deterministic: each
// category owns an ordered list of case-insensitive patterns, and a
// match scores by pattern specificity (longer, more specific patterns
// score higher within the 0.8-1.0 band). The same query always yields
// the same scores.
package intent

import (
	"regexp"
	"sort"
)

// Type is an intent category.
type Type string

const (
	TypeAssignment     Type = "assignment"
	TypePerformance    Type = "performance"
	TypeAnalytics      Type = "analytics"
	TypeLearning       Type = "learning"
	TypeUrgency        Type = "urgency"
	TypeQuality        Type = "quality"
	TypeGeneralInquiry Type = "general_inquiry"
)

// fallbackConfidence is assigned when no pattern table matches.
const fallbackConfidence = 0.55

// Match is one scored intent category.
type Match struct {
	Type       Type    `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Intent is the classification result: the winning category, up to two
// runners-up, and every category that matched.
type Intent struct {
	Primary   Match   `json:"primary"`
	Secondary []Match `json:"secondary"`
	AllScores []Match `json:"all_scores"`
}

// pattern is one compiled matcher with its specificity-derived score.
type pattern struct {
	re         *regexp.Regexp
	confidence float64
}

// patternTable holds the ordered patterns for one category.
type patternTable struct {
	intentType Type
	patterns   []pattern
}

// Classifier scores queries against the fixed category tables.
type Classifier struct {
	tables []patternTable
}

// NewClassifier compiles the category pattern tables.
func NewClassifier() *Classifier {
	return &Classifier{tables: []patternTable{
		table(TypeAssignment,
			`who\s+should`,
			`which\s+(worker|operator)`,
			`best\s+(worker|person|operator)`,
			`assign`,
			`recommend`,
			`who\s+can`,
			`work\s+on`,
		),
		table(TypePerformance,
			`how\s+(is|are|did)`,
			`performance`,
			`track\s+record`,
			`stats\s+for`,
			`doing\s+on`,
		),
		table(TypeAnalytics,
			`analy[sz]e`,
			`compare`,
			`trend`,
			`insight`,
			`statistics`,
			`report\s+on`,
		),
		table(TypeLearning,
			`retrain`,
			`\btrain\b`,
			`\blearn`,
			`teach`,
			`update\s+the\s+model`,
			`new\s+data`,
		),
		table(TypeUrgency,
			`urgent`,
			`\brush\b`,
			`asap`,
			`emergency`,
			`right\s+away`,
			`immediately`,
		),
		table(TypeQuality,
			`quality`,
			`precision`,
			`accurate`,
			`careful`,
			`flawless`,
			`perfect`,
		),
	}}
}

// table compiles one category's patterns with specificity scores.
func table(t Type, exprs ...string) patternTable {
	patterns := make([]pattern, 0, len(exprs))
	for _, expr := range exprs {
		patterns = append(patterns, pattern{
			re:         regexp.MustCompile(`(?i)` + expr),
			confidence: specificityConfidence(expr),
		})
	}
	return patternTable{intentType: t, patterns: patterns}
}

// specificityConfidence maps pattern length onto the 0.8-1.0 band:
// longer patterns match narrower phrasings and earn higher scores.
func specificityConfidence(expr string) float64 {
	specificity := float64(len(expr)) / float64(len(expr)+15)
	return 0.8 + 0.2*specificity
}

// Classify scores the query against every category table. The primary
// match is the highest-scoring category; ties keep table order. A query
// matching nothing classifies as general_inquiry.
func (c *Classifier) Classify(query string) Intent {
	var scores []Match
	for _, tbl := range c.tables {
		best := 0.0
		for _, p := range tbl.patterns {
			if p.re.MatchString(query) && p.confidence > best {
				best = p.confidence
			}
		}
		if best > 0 {
			scores = append(scores, Match{Type: tbl.intentType, Confidence: best})
		}
	}

	if len(scores) == 0 {
		fallback := Match{Type: TypeGeneralInquiry, Confidence: fallbackConfidence}
		return Intent{Primary: fallback, AllScores: []Match{fallback}}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Confidence > scores[j].Confidence
	})

	intent := Intent{Primary: scores[0], AllScores: scores}
	if len(scores) > 1 {
		end := len(scores)
		if end > 3 {
			end = 3
		}
		intent.Secondary = append(intent.Secondary, scores[1:end]...)
	}
	return intent
}
