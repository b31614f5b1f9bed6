// Package keywords turns a Discovery query into the ordered list of provider
// search keywords and a provider type hint.
package keywords

import (
	"strings"

	"petcare-workers/internal/engine/tables"
	"petcare-workers/internal/models"
)

// Plan is the output of keyword expansion.
type Plan struct {
	Keywords []string `json:"keywords"`
	TypeHint string   `json:"typeHint"`
	Category string   `json:"category"`
}

// Expander builds search plans from the injected tables.
type Expander struct {
	tables        *tables.Tables
	maxExpansions int
}

// NewExpander creates an Expander. A non-positive maxExpansions keeps the
// table's own cap.
func NewExpander(t *tables.Tables, maxExpansions int) *Expander {
	if maxExpansions <= 0 {
		maxExpansions = t.MaxExpansions()
	}
	return &Expander{tables: t, maxExpansions: maxExpansions}
}

// Expand builds the keyword plan for q.
func (e *Expander) Expand(q models.QueryContext) Plan {
	category, name := e.tables.Category(q.Category)
	plan := Plan{TypeHint: category.PrimaryType, Category: name}

	if !q.HasFreeText() {
		plan.Keywords = dedupe(category.Keywords)
		return plan
	}

	freeText := strings.TrimSpace(q.FreeText)
	lowered := tables.Normalize(freeText)

	plan.Keywords = []string{freeText}
	seen := map[string]bool{strings.ToLower(freeText): true}
	added := 0
expansions:
	for _, exp := range e.tables.Expansions() {
		if !containsAny(lowered, exp.Match) {
			continue
		}
		for _, phrase := range exp.Phrases {
			if added >= e.maxExpansions {
				break expansions
			}
			phrase = strings.TrimSpace(phrase)
			key := strings.ToLower(phrase)
			if phrase == "" || seen[key] {
				continue
			}
			seen[key] = true
			plan.Keywords = append(plan.Keywords, phrase)
			added++
		}
	}

	for _, rule := range e.tables.TypeRules() {
		if containsAny(lowered, rule.Match) {
			plan.TypeHint = rule.Type
			break
		}
	}
	return plan
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if t := tables.Normalize(term); t != "" && strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// dedupe trims, drops empties and removes case-insensitive duplicates keeping
// the first occurrence.
func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, kw)
	}
	return out
}
