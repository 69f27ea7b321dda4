// Package context derives structured job context from free-text
// queries: machine references, complexity hints, time pressure, quality
// focus, and weighted environmental factors. Derived context is merged
// shallowly with caller-supplied context, with the supplied side
// winning on top-level key collisions.
package context

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Requirements captures the job parameters read from the query.
type Requirements struct {
	MachineID      int    `json:"machine_id,omitempty"`
	Complexity     string `json:"complexity,omitempty"`
	TimeConstraint string `json:"time_constraint,omitempty"`
	QualityFocus   string `json:"quality_focus,omitempty"`
}

// Factor is one weighted environmental signal. Weights multiply the
// reasoning confidence, so values above 1 boost and below 1 dampen.
type Factor struct {
	Type   string  `json:"type"`
	Factor string  `json:"factor"`
	Weight float64 `json:"weight"`
}

// ExtractedContext is the merged view the reasoning engine works from.
// EnvironmentalFactors preserves insertion order; a later match of the
// same factor type replaces the earlier entry in place.
type ExtractedContext struct {
	Requirements         Requirements           `json:"requirements"`
	EnvironmentalFactors []Factor               `json:"environmental_factors,omitempty"`
	Constraints          map[string]interface{} `json:"constraints,omitempty"`
}

// Factor type names.
const (
	FactorUrgency     = "urgency"
	FactorTimeOfDay   = "time_of_day"
	FactorWorkload    = "workload"
	FactorQualityWork = "quality_context"
)

var machineRe = regexp.MustCompile(`(?i)machine\s*(\d+)`)

// complexityBuckets are evaluated in order; the first bucket containing
// a matching keyword decides the complexity level.
var complexityBuckets = []struct {
	level    string
	keywords []string
}{
	{"simple", []string{"simple", "easy", "basic"}},
	{"medium", []string{"medium", "standard", "normal"}},
	{"complex", []string{"complex", "difficult", "challenging", "advanced", "intricate"}},
	{"critical", []string{"critical", "precision", "perfect", "exact", "flawless"}},
}

var urgencyKeywords = []string{"urgent", "rush", "asap"}

var qualityKeywords = []string{"quality", "precision", "careful"}

// factorTable maps keywords to a weighted factor of one type. Within a
// type, a later keyword match overrides an earlier one.
type factorTable struct {
	factorType string
	entries    []factorEntry
}

type factorEntry struct {
	keyword string
	factor  string
	weight  float64
}

var factorTables = []factorTable{
	{FactorTimeOfDay, []factorEntry{
		{"morning", "morning", 1.1},
		{"afternoon", "afternoon", 1.0},
		{"evening", "evening", 0.95},
		{"night", "night", 0.9},
	}},
	{FactorWorkload, []factorEntry{
		{"busy", "busy", 0.9},
		{"overloaded", "overloaded", 0.9},
		{"quiet", "quiet", 1.05},
		{"light load", "light_load", 1.05},
	}},
	{FactorQualityWork, []factorEntry{
		{"quality", "quality_focus", 1.15},
		{"precision", "precision_work", 1.15},
	}},
}

// Extractor turns queries plus supplied context into ExtractedContext.
// Extraction never fails; an unreadable query yields an empty context.
type Extractor struct{}

// NewExtractor creates a context extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract derives context from the query and shallow-merges the
// supplied context over it: a supplied requirements or
// environmental_factors key replaces the derived value wholesale, and
// every other supplied key is carried as a constraint.
func (e *Extractor) Extract(query string, supplied map[string]interface{}) ExtractedContext {
	lower := strings.ToLower(query)
	ctx := ExtractedContext{}

	if m := machineRe.FindStringSubmatch(query); m != nil {
		if id, err := strconv.Atoi(m[1]); err == nil {
			ctx.Requirements.MachineID = id
		}
	}

	for _, bucket := range complexityBuckets {
		if containsAny(lower, bucket.keywords) {
			ctx.Requirements.Complexity = bucket.level
			break
		}
	}

	if containsAny(lower, urgencyKeywords) {
		ctx.Requirements.TimeConstraint = "urgent"
		ctx.EnvironmentalFactors = upsertFactor(ctx.EnvironmentalFactors, Factor{
			Type:   FactorUrgency,
			Factor: "high",
			Weight: 1.2,
		})
	}

	if containsAny(lower, qualityKeywords) {
		ctx.Requirements.QualityFocus = "high"
	}

	for _, tbl := range factorTables {
		for _, entry := range tbl.entries {
			if strings.Contains(lower, entry.keyword) {
				ctx.EnvironmentalFactors = upsertFactor(ctx.EnvironmentalFactors, Factor{
					Type:   tbl.factorType,
					Factor: entry.factor,
					Weight: entry.weight,
				})
			}
		}
	}

	return mergeSupplied(ctx, supplied)
}

// containsAny reports whether any keyword occurs in the text.
func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// upsertFactor replaces the existing entry of the same type in place,
// or appends a new one. Insertion order of first appearance is kept.
func upsertFactor(factors []Factor, f Factor) []Factor {
	for i := range factors {
		if factors[i].Type == f.Type {
			factors[i] = f
			return factors
		}
	}
	return append(factors, f)
}

// mergeSupplied applies the shallow top-level merge: known keys replace
// the derived side wholesale, unknown keys become constraints.
func mergeSupplied(ctx ExtractedContext, supplied map[string]interface{}) ExtractedContext {
	if len(supplied) == 0 {
		return ctx
	}

	for _, key := range sortedKeys(supplied) {
		value := supplied[key]
		switch key {
		case "requirements":
			if m, ok := value.(map[string]interface{}); ok {
				ctx.Requirements = parseRequirements(m)
			}
		case "environmental_factors":
			if m, ok := value.(map[string]interface{}); ok {
				ctx.EnvironmentalFactors = parseFactors(m)
			}
		case "constraints":
			if m, ok := value.(map[string]interface{}); ok {
				ctx.Constraints = m
			}
		default:
			if ctx.Constraints == nil {
				ctx.Constraints = make(map[string]interface{})
			}
			ctx.Constraints[key] = value
		}
	}
	return ctx
}

// parseRequirements reads a supplied requirements object. Numeric JSON
// values arrive as float64 and are truncated to int.
func parseRequirements(m map[string]interface{}) Requirements {
	req := Requirements{}
	switch v := m["machine_id"].(type) {
	case float64:
		req.MachineID = int(v)
	case int:
		req.MachineID = v
	case string:
		if id, err := strconv.Atoi(v); err == nil {
			req.MachineID = id
		}
	}
	if s, ok := m["complexity"].(string); ok {
		req.Complexity = s
	}
	if s, ok := m["time_constraint"].(string); ok {
		req.TimeConstraint = s
	}
	if s, ok := m["quality_focus"].(string); ok {
		req.QualityFocus = s
	}
	return req
}

// parseFactors reads a supplied factor map keyed by type. Keys are
// sorted so the resulting order is stable.
func parseFactors(m map[string]interface{}) []Factor {
	var factors []Factor
	for _, key := range sortedKeys(m) {
		entry, ok := m[key].(map[string]interface{})
		if !ok {
			continue
		}
		f := Factor{Type: key, Weight: 1.0}
		if s, ok := entry["factor"].(string); ok {
			f.Factor = s
		}
		if w, ok := entry["weight"].(float64); ok {
			f.Weight = w
		}
		factors = append(factors, f)
	}
	return factors
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
