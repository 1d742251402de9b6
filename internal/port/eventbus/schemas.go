package eventbus

import "github.com/Strob0t/ticketslack/internal/domain/ticket"

// TicketCreatedPayload is the schema for ticket.created events.
type TicketCreatedPayload struct {
	TicketID int64 `json:"ticket_id"`
}

// ThreadEntryCreatedPayload is the schema for threadentry.created events.
type ThreadEntryCreatedPayload struct {
	ID       int64  `json:"id"`
	ThreadID int64  `json:"thread_id"`
	Type     string `json:"type"`
	Poster   string `json:"poster"`
	Body     string `json:"body"`
	Format   string `json:"format"`
}

// Entry converts the payload into a domain thread entry.
func (p ThreadEntryCreatedPayload) Entry() ticket.ThreadEntry {
	return ticket.ThreadEntry{
		ID:       p.ID,
		ThreadID: p.ThreadID,
		Type:     ticket.EntryType(p.Type),
		Poster:   p.Poster,
		Body:     p.Body,
		Format:   p.Format,
	}
}
