// Package highlight marks query tokens inside raw line content. Tokens are
// matched literally and case-insensitively, so a stem such as "turtl" marks
// the first five letters of "Turtle" and leaves the rest unmarked.
package highlight

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	ansiOpen  = "\033[1;32;40m"
	ansiClose = "\033[0;0m"
)

// MarkFunc renders one matched substring.
type MarkFunc func(match string) string

// Wrap surrounds every match with open and close.
func Wrap(open, close string) MarkFunc {
	return func(match string) string {
		return open + match + close
	}
}

// ANSI marks matches bold green on black with raw escape codes, regardless
// of whether the output is a terminal.
func ANSI() MarkFunc {
	return Wrap(ansiOpen, ansiClose)
}

// Style renders matches through a lipgloss style, which drops colors the
// output cannot display.
func Style(style lipgloss.Style) MarkFunc {
	return func(match string) string {
		return style.Render(match)
	}
}

// DefaultStyle is the lipgloss equivalent of ANSI.
func DefaultStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.Color("2")).
		Background(lipgloss.Color("0"))
}

type Highlighter struct {
	mark MarkFunc
}

func New(mark MarkFunc) *Highlighter {
	if mark == nil {
		mark = ANSI()
	}
	return &Highlighter{mark: mark}
}

// Matcher applies one token set to many lines.
type Matcher struct {
	re   *regexp.Regexp
	mark MarkFunc
}

// Compile builds a matcher for tokens. Longer tokens win where two overlap at
// the same position. Empty tokens are ignored.
func (h *Highlighter) Compile(tokens []string) *Matcher {
	words := slices.DeleteFunc(slices.Clone(tokens), func(t string) bool { return t == "" })
	if len(words) == 0 {
		return &Matcher{mark: h.mark}
	}
	slices.SortFunc(words, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return &Matcher{
		re:   regexp.MustCompile("(?i)(?:" + strings.Join(quoted, "|") + ")"),
		mark: h.mark,
	}
}

// Apply marks every occurrence in content. Inserted markers are never
// rescanned.
func (m *Matcher) Apply(content string) string {
	if m.re == nil {
		return content
	}
	return m.re.ReplaceAllStringFunc(content, m.mark)
}

// Highlight is Compile followed by Apply for a single line.
func (h *Highlighter) Highlight(content string, tokens []string) string {
	return h.Compile(tokens).Apply(content)
}

// Locate is the prefix printed before every matched line.
func Locate(doc string, line int) string {
	return fmt.Sprintf("- document %s| row %d: ", doc, line)
}
