package notify

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/Strob0t/ticketslack/internal/domain/ticket"
)

// MaxTextLength caps heading and body text, counted in characters.
const MaxTextLength = 500

// Sentinels stand in for webhook markup while text is escaped. They are
// private-use runes, stripped from user content before rendering.
const (
	ctrlStart = "\uE000"
	ctrlEnd   = "\uE001"
)

var (
	escaper  = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	restorer = strings.NewReplacer(ctrlStart, "<", ctrlEnd, ">")
	stripper = strings.NewReplacer(ctrlStart, "", ctrlEnd, "")
)

// Rendered is the text content of a notification before payload assembly.
type Rendered struct {
	Heading string
	Body    string
	Color   string
}

// Render produces the heading and sanitized body for ev.
func Render(ev Event, cfg Config) (Rendered, error) {
	body, err := plainBody(ev)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{
		Heading: FormatText(Heading(ev, cfg.BaseURL)),
		Body:    FormatText(stripper.Replace(body)),
		Color:   cfg.Rule(ev.Kind).Color,
	}, nil
}

// Heading builds the unescaped heading line with link markup in sentinel form.
func Heading(ev Event, baseURL string) string {
	t := ev.Ticket
	ref := link(TicketURL(baseURL, t.ID), "#"+stripper.Replace(t.Number))
	if ev.Kind == KindOpened {
		return fmt.Sprintf("New Ticket %s created", ref)
	}

	poster := ""
	if ev.Entry != nil {
		poster = stripper.Replace(ev.Entry.Poster)
	}
	usertype, edittype := ev.Kind.actor()
	return fmt.Sprintf("%s %s %s ticket %s", usertype, poster, edittype, ref)
}

// TicketURL is the staff panel link for a ticket.
func TicketURL(baseURL string, id int64) string {
	return baseURL + "scp/tickets.php?id=" + strconv.FormatInt(id, 10)
}

// FormatText applies webhook message formatting: the reserved characters are
// escaped, sentinel markup is restored to literal angle brackets, and the
// result is truncated to MaxTextLength characters.
func FormatText(s string) string {
	return truncate(restorer.Replace(escaper.Replace(s)), MaxTextLength)
}

func link(url, label string) string {
	return ctrlStart + url + "|" + label + ctrlEnd
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// plainBody picks the message behind ev and converts it to plain text.
func plainBody(ev Event) (string, error) {
	var entry ticket.ThreadEntry
	switch {
	case ev.Kind == KindOpened:
		first, ok := ev.Ticket.FirstMessage()
		if !ok {
			return "", nil
		}
		entry = first
	case ev.Entry != nil:
		entry = *ev.Entry
	default:
		return "", nil
	}

	body := ensureUTF8(entry.Body)
	if !entry.IsHTML() {
		return strings.TrimSpace(body), nil
	}
	text, err := HTMLToText(body)
	if err != nil {
		return "", &RenderError{Op: "html to text", Err: err}
	}
	return text, nil
}

// ensureUTF8 re-decodes byte strings that are not valid UTF-8. Legacy
// mail clients hand the host Windows-1252 text more often than anything else.
func ensureUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	out, err := charmap.Windows1252.NewDecoder().String(s)
	if err != nil {
		return strings.ToValidUTF8(s, "\uFFFD")
	}
	return out
}
