// Package parser turns a free-text query into the token set it matches.
// There is no query language: every token is OR'd with the others.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/indexer/normalizer"
)

type QueryPlan struct {
	RawQuery string   `json:"query"`
	Tokens   []string `json:"tokens"`
}

// Empty reports whether the query normalized to nothing, for example a
// query made only of stop words.
func (p *QueryPlan) Empty() bool {
	return len(p.Tokens) == 0
}

// Key is a stable identity for the plan's token set.
func (p *QueryPlan) Key() string {
	return strings.Join(p.Tokens, "\x1f")
}

type Parser struct {
	norm *normalizer.Normalizer
}

// New uses the same normalizer the index was built with; any other would
// make stored tokens unreachable.
func New(norm *normalizer.Normalizer) *Parser {
	return &Parser{norm: norm}
}

// Parse returns tokens sorted ascending.
func (p *Parser) Parse(query string) *QueryPlan {
	return &QueryPlan{
		RawQuery: query,
		Tokens:   p.norm.Normalize(query).Sorted(),
	}
}
