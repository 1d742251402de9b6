package notify

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/Strob0t/ticketslack/internal/domain/ticket"
)

// FieldOpenTasks titles the attachment field listing open tasks.
const FieldOpenTasks = "Open Tasks"

// Build assembles the webhook message for a rendered notification.
// An overdue ticket always takes the overdue color.
func Build(r Rendered, t ticket.Ticket, cfg Config, now time.Time) (slack.WebhookMessage, error) {
	vars := TicketVars(t, cfg.BaseURL)
	vars[VarSafeMessage] = r.Body

	text, err := ExpandTemplate(cfg.Template, vars)
	if err != nil {
		return slack.WebhookMessage{}, &RenderError{Op: "template", Err: err}
	}

	att := slack.Attachment{
		Pretext:    r.Heading,
		Fallback:   r.Heading,
		Color:      r.Color,
		Title:      t.Subject,
		TitleLink:  TicketURL(cfg.BaseURL, t.ID),
		Ts:         json.Number(strconv.FormatInt(now.Unix(), 10)),
		Footer:     cfg.Footer,
		FooterIcon: cfg.FooterIcon,
		Text:       strings.TrimSpace(text),
		MarkdownIn: []string{"text"},
	}

	if t.OpenTasks > 0 {
		att.Fields = append(att.Fields, slack.AttachmentField{
			Title: FieldOpenTasks,
			Value: strconv.Itoa(t.OpenTasks),
			Short: true,
		})
	}

	if t.Overdue {
		att.Color = cfg.OverdueColor
	}

	return slack.WebhookMessage{Attachments: []slack.Attachment{att}}, nil
}
