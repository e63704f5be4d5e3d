package services

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RetrievalRules is the hand-tuned rule table behind the scored retrieval
// mode: misspelling/synonym corrections plus named concept groups whose
// co-occurrence in a result earns a bonus. The table is deliberately small
// and replaceable; an operator can override it wholesale from a YAML file.
type RetrievalRules struct {
	Corrections   map[string]string   `yaml:"corrections"`
	ConceptGroups map[string][]string `yaml:"concept_groups"`
}

// DefaultRetrievalRules covers the alternate spellings and concept pairings
// seen most often in storefront queries.
func DefaultRetrievalRules() RetrievalRules {
	return RetrievalRules{
		Corrections: map[string]string{
			"chocolat":    "chocolate",
			"choclate":    "chocolate",
			"chocolte":    "chocolate",
			"vegen":       "vegan",
			"vegann":      "vegan",
			"glutenfree":  "gluten free",
			"gluten-free": "gluten free",
			"sugarfree":   "sugar free",
			"sugar-free":  "sugar free",
			"keto":        "keto",
			"organik":     "organic",
			"orgnic":      "organic",
			"shiping":     "shipping",
			"delivary":    "delivery",
			"acessories":  "accessories",
			"jewelery":    "jewelry",
		},
		ConceptGroups: map[string][]string{
			"dietary": {
				"vegan", "keto", "diet", "organic", "gluten", "sugar",
				"dairy", "paleo", "natural",
			},
			"product": {
				"chocolate", "bar", "cookie", "snack", "candy", "tea",
				"coffee", "cream", "soap", "candle", "shirt", "jewelry",
			},
		},
	}
}

// LoadRetrievalRules reads an override table from path, falling back to the
// defaults when path is empty. A file that parses but omits a section keeps
// that section's defaults.
func LoadRetrievalRules(path string) (RetrievalRules, error) {
	rules := DefaultRetrievalRules()
	if path == "" {
		return rules, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return rules, fmt.Errorf("read retrieval rules: %w", err)
	}
	var loaded RetrievalRules
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return rules, fmt.Errorf("parse retrieval rules: %w", err)
	}
	if len(loaded.Corrections) > 0 {
		rules.Corrections = loaded.Corrections
	}
	if len(loaded.ConceptGroups) > 0 {
		rules.ConceptGroups = loaded.ConceptGroups
	}
	return rules, nil
}
