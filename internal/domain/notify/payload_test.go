package notify_test

import (
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/ticketslack/internal/domain/notify"
)

func buildCreated(t *testing.T, mutate func(cfg *notify.Config)) (notify.Rendered, notify.Config) {
	t.Helper()
	cfg := allEnabled()
	if mutate != nil {
		mutate(&cfg)
	}
	r, err := notify.Render(notify.Created(sampleTicket()), cfg)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	return r, cfg
}

func TestBuildAttachment(t *testing.T) {
	r, cfg := buildCreated(t, nil)
	now := time.Unix(1700000000, 0)

	msg, err := notify.Build(r, sampleTicket(), cfg, now)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(msg.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(msg.Attachments))
	}

	att := msg.Attachments[0]
	if att.Pretext != r.Heading || att.Fallback != r.Heading {
		t.Fatalf("pretext/fallback = %q/%q", att.Pretext, att.Fallback)
	}
	if att.Title != "Printer on fire" {
		t.Fatalf("title = %q", att.Title)
	}
	if att.TitleLink != "https://help.example.com/scp/tickets.php?id=7" {
		t.Fatalf("title link = %q", att.TitleLink)
	}
	if att.Color != notify.DefaultOpenedColor {
		t.Fatalf("color = %q", att.Color)
	}
	if string(att.Ts) != "1700000000" {
		t.Fatalf("ts = %q", att.Ts)
	}
	if att.Footer != notify.DefaultFooter || att.FooterIcon != notify.DefaultFooterIcon {
		t.Fatalf("footer = %q %q", att.Footer, att.FooterIcon)
	}
	want := "Jane Doe (jane@example.com) in *Support* _Hardware_\n\n```It is on fire.```"
	if att.Text != want {
		t.Fatalf("text = %q, want %q", att.Text, want)
	}
	if len(att.MarkdownIn) != 1 || att.MarkdownIn[0] != "text" {
		t.Fatalf("mrkdwn_in = %v", att.MarkdownIn)
	}
	if len(att.Fields) != 0 {
		t.Fatalf("expected no fields, got %v", att.Fields)
	}
}

func TestBuildOpenTasksField(t *testing.T) {
	r, cfg := buildCreated(t, nil)
	tk := sampleTicket()
	tk.OpenTasks = 3

	msg, err := notify.Build(r, tk, cfg, time.Now())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	fields := msg.Attachments[0].Fields
	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}
	if fields[0].Title != notify.FieldOpenTasks || fields[0].Value != "3" || !fields[0].Short {
		t.Fatalf("unexpected field %+v", fields[0])
	}
}

func TestBuildOverdueOverridesColor(t *testing.T) {
	r, cfg := buildCreated(t, func(cfg *notify.Config) {
		cfg.OverdueColor = "#000001"
	})
	tk := sampleTicket()
	tk.Overdue = true

	msg, err := notify.Build(r, tk, cfg, time.Now())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := msg.Attachments[0].Color; got != "#000001" {
		t.Fatalf("expected overdue color, got %q", got)
	}
}

func TestBuildTemplateError(t *testing.T) {
	r, cfg := buildCreated(t, func(cfg *notify.Config) {
		cfg.Template = "%{ticket.name"
	})

	_, err := notify.Build(r, sampleTicket(), cfg, time.Now())
	var re *notify.RenderError
	if !errors.As(err, &re) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if re.Op != "template" {
		t.Fatalf("op = %q", re.Op)
	}
}
