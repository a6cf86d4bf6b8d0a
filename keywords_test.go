package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadUrgencyKeywords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urgency.yaml")
	content := `phrases:
  - "system down"
  - "  Data Loss  "
  - sla breach
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write keywords file: %v", err)
	}

	kw, err := LoadUrgencyKeywords(path)
	if err != nil {
		t.Fatalf("LoadUrgencyKeywords failed: %v", err)
	}
	if len(kw.Phrases) != 3 {
		t.Fatalf("expected 3 phrases, got %v", kw.Phrases)
	}
}

func TestLoadUrgencyKeywordsMissingFile(t *testing.T) {
	if _, err := LoadUrgencyKeywords(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadUrgencyKeywordsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("phrases: [unclosed"), 0o644); err != nil {
		t.Fatalf("write keywords file: %v", err)
	}
	if _, err := LoadUrgencyKeywords(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestUrgencyKeywordsMatch(t *testing.T) {
	kw := &UrgencyKeywords{Phrases: []string{"System Down", "  data loss  ", ""}}

	tests := []struct {
		text string
		want bool
	}{
		{"The whole SYSTEM DOWN since 9am", true},
		{"worried about data loss on restore", true},
		{"routine question about invoices", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := kw.Match(tt.text); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestUrgencyKeywordsNilReceiver(t *testing.T) {
	var kw *UrgencyKeywords
	if kw.Match("system down") {
		t.Fatal("nil keywords must never match")
	}
}
