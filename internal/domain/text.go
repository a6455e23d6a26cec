package domain

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PlainText drops every tag, comment and script/style body from raw and
// returns the remaining text with entities decoded and outer space trimmed.
func PlainText(raw string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(raw))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return "", z.Err()
			}
			return strings.TrimSpace(b.String()), nil
		case html.StartTagToken:
			if hidden(z.Token().DataAtom) {
				skip++
			}
		case html.EndTagToken:
			if hidden(z.Token().DataAtom) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.WriteString(z.Token().Data)
			}
		}
	}
}

func hidden(a atom.Atom) bool {
	switch a {
	case atom.Script, atom.Style, atom.Iframe, atom.Noscript, atom.Template:
		return true
	}
	return false
}
