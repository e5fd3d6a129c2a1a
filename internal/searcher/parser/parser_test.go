package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/normalizer"
)

func newParser(t *testing.T) *Parser {
	t.Helper()
	n, err := normalizer.New(normalizer.Config{StopWords: normalizer.DefaultStopWords()})
	if err != nil {
		t.Fatal(err)
	}
	return New(n)
}

func TestParse(t *testing.T) {
	p := newParser(t)
	tests := []struct {
		query string
		want  []string
	}{
		{"fox", []string{"fox"}},
		{"Turtles jumping over the FOX", []string{"fox", "jump", "turtl"}},
		{"the a of", []string{}},
		{"", []string{}},
		{"fox AND turtle", []string{"fox", "turtl"}},
	}
	for _, tt := range tests {
		plan := p.Parse(tt.query)
		if plan.RawQuery != tt.query {
			t.Errorf("RawQuery = %q, want %q", plan.RawQuery, tt.query)
		}
		if diff := cmp.Diff(tt.want, plan.Tokens); diff != "" {
			t.Errorf("Parse(%q) tokens mismatch (-want +got):\n%s", tt.query, diff)
		}
		if plan.Empty() != (len(tt.want) == 0) {
			t.Errorf("Parse(%q).Empty() = %v", tt.query, plan.Empty())
		}
	}
}

func TestKeyIgnoresWordOrderAndCase(t *testing.T) {
	p := newParser(t)
	if a, b := p.Parse("fox turtle").Key(), p.Parse("TURTLES, fox!").Key(); a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}
}
