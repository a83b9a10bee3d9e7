package pathindex

import (
	"strings"
	"testing"

	"github.com/lazyfrosch/rdiff-backup/logging"
)

func TestQuoteUnquoteRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"plain/name.txt",
		"weird\nname",
		`back\slash`,
		"both\\and\nhere",
		"a/b.txt",
	}
	for _, s := range cases {
		q := Quote(s)
		if strings.ContainsRune(q, '\n') {
			t.Errorf("Quote(%q) = %q contains an unescaped newline", s, q)
		}
		got := Unquote(q, logging.Discard())
		if got != s {
			t.Errorf("Unquote(Quote(%q)) = %q, want %q", s, got, s)
		}
	}
}

func TestUnquoteUnknownEscape(t *testing.T) {
	got := Unquote(`foo\xbar`, logging.Discard())
	if got != `foo\xbar` {
		t.Errorf("Unquote passed through unknown escape as %q", got)
	}
}

func TestIndexTokenRoundTrip(t *testing.T) {
	cases := []Index{
		Root,
		{"a", "b.txt"},
		{"weird\nname"},
	}
	for _, idx := range cases {
		tok := idx.Token()
		got := ParseToken(tok, logging.Discard())
		if !got.Equal(idx) {
			t.Errorf("ParseToken(%q) = %v, want %v", tok, got, idx)
		}
	}
}

func TestIndexOrderingAndPrefix(t *testing.T) {
	a := Index{"a"}
	ax := Index{"a", "x"}
	b := Index{"b"}
	if !a.Less(ax) {
		t.Error("expected a < a/x")
	}
	if !ax.Less(b) {
		t.Error("expected a/x < b")
	}
	if !ax.HasPrefix(a) {
		t.Error("expected a/x to have prefix a")
	}
	if b.HasPrefix(a) {
		t.Error("did not expect b to have prefix a")
	}
}
