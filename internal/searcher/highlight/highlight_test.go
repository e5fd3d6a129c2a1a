package highlight

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestHighlight(t *testing.T) {
	h := New(Wrap("[", "]"))
	tests := []struct {
		name    string
		content string
		tokens  []string
		want    string
	}{
		{"single", "The quick fox jumps", []string{"fox"}, "The quick [fox] jumps"},
		{"case insensitive", "FOX and Fox", []string{"fox"}, "[FOX] and [Fox]"},
		{"stem marks prefix only", "A slow turtle", []string{"turtl"}, "A slow [turtl]e"},
		{"stem absent from surface", "It jumped", []string{"jump"}, "It [jump]ed"},
		{"stem not a substring", "He flies", []string{"fli"}, "He [fli]es"},
		{"no match", "nothing here", []string{"fox"}, "nothing here"},
		{"longest wins", "foxglove", []string{"fox", "foxglov"}, "[foxglov]e"},
		{"empty token ignored", "abc", []string{""}, "abc"},
		{"no tokens", "abc", nil, "abc"},
		{"metacharacters literal", "a+b and ab", []string{"a+b"}, "[a+b] and ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.Highlight(tt.content, tt.tokens); got != tt.want {
				t.Errorf("Highlight(%q, %v) = %q, want %q", tt.content, tt.tokens, got, tt.want)
			}
		})
	}
}

func TestANSIMarkersNotRescanned(t *testing.T) {
	// "m" occurs inside the escape sequence of the first marker
	got := New(ANSI()).Highlight("fox m", []string{"fox", "m"})
	want := "\033[1;32;40mfox\033[0;0m \033[1;32;40mm\033[0;0m"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStyleWithoutColorProfileIsPlain(t *testing.T) {
	// lipgloss renders plain text when it cannot detect a color terminal
	mark := Style(lipgloss.NewStyle())
	if got := mark("fox"); got != "fox" {
		t.Errorf("mark = %q, want %q", got, "fox")
	}
}

func TestLocate(t *testing.T) {
	if got, want := Locate("doc1", 3), "- document doc1| row 3: "; got != want {
		t.Errorf("Locate = %q, want %q", got, want)
	}
}
