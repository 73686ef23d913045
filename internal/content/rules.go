package content

import (
	"fmt"
	"regexp"
	"strings"
)

// Category groups trigger phrases that count as a single risk factor no
// matter how many of them appear.
type Category struct {
	Name    string   `yaml:"name"`
	Phrases []string `yaml:"phrases"`
}

// Rules is the tunable part of the analysis. It is loaded from the config
// file and never changes after start.
type Rules struct {
	Categories []Category `yaml:"categories"`

	// Formatting category: exclamation marks per word and upper-case letters
	// per letter. Zero disables the check.
	ExclamationRatio float64 `yaml:"exclamationRatio"`
	CapsRatio        float64 `yaml:"capsRatio"`

	BulkPhrases         []string `yaml:"bulkPhrases"`
	UnsubscribePatterns []string `yaml:"unsubscribePatterns"`
}

func DefaultRules() Rules {
	return Rules{
		Categories: []Category{
			{Name: "pressure", Phrases: []string{"act now", "limited time", "urgent", "expires today", "don't delay"}},
			{Name: "money", Phrases: []string{"free money", "cash bonus", "risk-free", "100% free", "double your"}},
			{Name: "prize", Phrases: []string{"winner", "congratulations", "you have been selected", "claim your prize"}},
			{Name: "click bait", Phrases: []string{"click here", "click below", "open immediately"}},
			{Name: "guarantees", Phrases: []string{"satisfaction guaranteed", "guaranteed", "no obligation"}},
			{Name: "scam", Phrases: []string{"nigerian prince", "wire transfer", "beneficiary"}},
		},
		ExclamationRatio: 0.1,
		CapsRatio:        0.5,
		BulkPhrases: []string{
			"special offer", "newsletter", "promotion", "% off", "discount",
			"buy now", "shop now", "exclusive deal", "order now", "sale ends",
		},
		UnsubscribePatterns: []string{
			`unsubscribe`,
			`opt[- ]?out`,
			`manage (your )?(email )?preferences`,
			`stop receiving`,
		},
	}
}

// Analyzer applies a compiled rule set. It is safe for concurrent use.
type Analyzer struct {
	rules       Rules
	unsubscribe []*regexp.Regexp
}

func NewAnalyzer(rules Rules) (*Analyzer, error) {
	a := &Analyzer{rules: rules}

	for i, c := range rules.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("trigger category %d has no name", i)
		}
	}
	for _, p := range rules.UnsubscribePatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid unsubscribe pattern '%s': %w", p, err)
		}
		a.unsubscribe = append(a.unsubscribe, re)
	}
	return a, nil
}

func (a *Analyzer) matchesUnsubscribe(s string) bool {
	for _, re := range a.unsubscribe {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
