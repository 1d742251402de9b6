package notify_test

import (
	"github.com/Strob0t/ticketslack/internal/domain/notify"
	"github.com/Strob0t/ticketslack/internal/domain/ticket"
)

const baseURL = "https://help.example.com/"

func allEnabled() notify.Config {
	values := map[string]string{
		notify.KeyWebhookURL: "https://hooks.example.com/T000/B000",
	}
	for _, k := range notify.RuleKinds {
		values[notify.EnabledKey(k)] = "1"
	}
	return notify.ConfigFromValues(values, baseURL)
}

func sampleTicket() ticket.Ticket {
	return ticket.Ticket{
		ID:         7,
		Number:     "100007",
		Subject:    "Printer on fire",
		Name:       "Jane Doe",
		Email:      "jane@example.com",
		Department: "Support",
		Topic:      "Hardware",
		Messages: []ticket.ThreadEntry{
			{ID: 1, ThreadID: 3, Type: ticket.EntryUserReply, Poster: "Jane Doe", Body: "<p>It is on fire.</p>", Format: ticket.FormatHTML},
		},
	}
}

func entry(id int64, typ ticket.EntryType, body string) ticket.ThreadEntry {
	return ticket.ThreadEntry{ID: id, ThreadID: 3, Type: typ, Poster: "Sam Agent", Body: body, Format: ticket.FormatText}
}
