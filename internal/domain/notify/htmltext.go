package notify

import (
	"errors"
	"io"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxTokenBytes bounds a single HTML token; larger tokens fail conversion.
const maxTokenBytes = 1 << 20

// HTMLToText converts an HTML message body to plain text. Block elements
// become line breaks, script and style content is dropped and entity
// references are decoded.
func HTMLToText(s string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(s))
	z.SetMaxBuf(maxTokenBytes)

	w := &textWriter{}
	skip, pre := 0, 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", err
			}
			return tidyLines(w.b.String()), nil

		case html.TextToken:
			if skip > 0 {
				continue
			}
			if pre > 0 {
				w.raw(string(z.Text()))
			} else {
				w.text(string(z.Text()))
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch a := atom.Lookup(name); a {
			case atom.Script, atom.Style, atom.Head, atom.Title:
				// <head/> has no end tag to close the skip.
				if tt == html.StartTagToken {
					skip++
				}
			case atom.Pre:
				if tt == html.StartTagToken {
					pre++
				}
				w.newline()
			case atom.Br:
				w.newline()
			case atom.Li:
				w.newline()
				w.raw("* ")
			case atom.Td, atom.Th:
				w.text(" ")
			default:
				if isBlock(a) {
					w.newline()
				}
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			switch a := atom.Lookup(name); a {
			case atom.Script, atom.Style, atom.Head, atom.Title:
				if skip > 0 {
					skip--
				}
			case atom.Pre:
				if pre > 0 {
					pre--
				}
				w.newline()
			default:
				if isBlock(a) {
					w.newline()
				}
			}
		}
	}
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Blockquote, atom.Tr, atom.Table,
		atom.Ul, atom.Ol, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Hr, atom.Section, atom.Article, atom.Header, atom.Footer:
		return true
	}
	return false
}

// textWriter collapses HTML whitespace the way a browser would.
type textWriter struct {
	b     strings.Builder
	space bool
}

func (w *textWriter) text(s string) {
	for _, r := range s {
		if unicode.IsSpace(r) {
			w.space = true
			continue
		}
		if w.space && w.b.Len() > 0 && !strings.HasSuffix(w.b.String(), "\n") {
			w.b.WriteByte(' ')
		}
		w.space = false
		w.b.WriteRune(r)
	}
}

func (w *textWriter) raw(s string) {
	w.space = false
	w.b.WriteString(s)
}

func (w *textWriter) newline() {
	w.space = false
	w.b.WriteByte('\n')
}

// tidyLines trims every line and keeps at most one blank line in a row.
func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, l := range lines {
		l = strings.TrimRightFunc(l, unicode.IsSpace)
		if strings.TrimSpace(l) == "" {
			blank++
			if blank > 1 {
				continue
			}
			l = ""
		} else {
			blank = 0
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
