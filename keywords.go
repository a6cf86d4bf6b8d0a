package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// UrgencyKeywords is an optional operator-maintained list of phrases that
// force a message to Urgent regardless of what the model says. Useful for
// contractual escalation terms the model keeps missing.
type UrgencyKeywords struct {
	Phrases []string `yaml:"phrases"`
}

func LoadUrgencyKeywords(path string) (*UrgencyKeywords, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read urgency keywords: %w", err)
	}
	var kw UrgencyKeywords
	if err := yaml.Unmarshal(data, &kw); err != nil {
		return nil, fmt.Errorf("parse urgency keywords yaml: %w", err)
	}
	return &kw, nil
}

// Match reports whether any configured phrase appears in text,
// case-insensitive. A nil receiver never matches.
func (kw *UrgencyKeywords) Match(text string) bool {
	if kw == nil {
		return false
	}
	lowered := strings.ToLower(text)
	for _, phrase := range kw.Phrases {
		phrase = normalizeTextToken(phrase)
		if phrase != "" && strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

func normalizeTextToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
