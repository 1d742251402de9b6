package notify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Strob0t/ticketslack/internal/domain/ticket"
)

// VarSafeMessage is the template variable holding the escaped message body.
const VarSafeMessage = "slack_safe_message"

var placeholderRegex = regexp.MustCompile(`%\{\s*([a-zA-Z0-9_.]+)\s*\}`)

// ExpandTemplate replaces %{name} placeholders with values from vars.
// Unknown variables expand to the empty string. A "%{" that does not open a
// well-formed placeholder is an error.
func ExpandTemplate(tpl string, vars map[string]string) (string, error) {
	if strings.Count(tpl, "%{") != len(placeholderRegex.FindAllStringIndex(tpl, -1)) {
		return "", fmt.Errorf("malformed placeholder in template")
	}
	return placeholderRegex.ReplaceAllStringFunc(tpl, func(match string) string {
		sub := placeholderRegex.FindStringSubmatch(match)
		return vars[strings.ToLower(sub[1])]
	}), nil
}

// TicketVars returns the ticket variables templates may reference.
func TicketVars(t ticket.Ticket, baseURL string) map[string]string {
	return map[string]string{
		"ticket.id":        strconv.FormatInt(t.ID, 10),
		"ticket.number":    t.Number,
		"ticket.subject":   t.Subject,
		"ticket.name":      t.Name,
		"ticket.name.full": t.Name,
		"ticket.email":     t.Email,
		"ticket.dept":      t.Department,
		"ticket.topic":     t.Topic,
		"url":              baseURL,
	}
}
