package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/ticketslack/internal/domain/ticket"
)

// objectTypeTicket tags thread and task rows owned by a ticket.
const objectTypeTicket = "T"

// GetTicket loads a ticket with its user-visible messages and its open task count.
func (s *Store) GetTicket(ctx context.Context, id int64) (*ticket.Ticket, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT t.ticket_id, t.number, t.subject, t.user_name, t.user_email,
		        t.dept_name, t.topic, t.isoverdue,
		        (SELECT COUNT(*) FROM task k
		          WHERE k.object_id = t.ticket_id AND k.object_type = $2 AND k.closed_at IS NULL)
		   FROM ticket t WHERE t.ticket_id = $1`,
		id, objectTypeTicket)

	t, err := scanTicket(row)
	if err != nil {
		return nil, notFoundWrap(err, "get ticket %d", id)
	}

	msgs, err := s.ticketMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Messages = msgs
	return &t, nil
}

// TicketForThread resolves the ticket owning a thread. Threads owned by
// anything other than a ticket report domain.ErrNotFound.
func (s *Store) TicketForThread(ctx context.Context, threadID int64) (*ticket.Ticket, error) {
	var ticketID int64
	err := s.pool.QueryRow(ctx,
		`SELECT object_id FROM thread WHERE id = $1 AND object_type = $2`,
		threadID, objectTypeTicket).Scan(&ticketID)
	if err != nil {
		return nil, notFoundWrap(err, "get thread %d", threadID)
	}
	return s.GetTicket(ctx, ticketID)
}

func (s *Store) ticketMessages(ctx context.Context, ticketID int64) ([]ticket.ThreadEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT e.id, e.thread_id, e.type, e.poster, e.body, e.format
		   FROM thread_entry e
		   JOIN thread th ON th.id = e.thread_id
		  WHERE th.object_id = $1 AND th.object_type = $2 AND e.type = $3
		  ORDER BY e.created_at, e.id`,
		ticketID, objectTypeTicket, string(ticket.EntryUserReply))
	if err != nil {
		return nil, fmt.Errorf("list messages for ticket %d: %w", ticketID, err)
	}
	defer rows.Close()

	var msgs []ticket.ThreadEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread entry: %w", err)
		}
		msgs = append(msgs, e)
	}
	return msgs, rows.Err()
}

func scanTicket(row scannable) (ticket.Ticket, error) {
	var t ticket.Ticket
	err := row.Scan(&t.ID, &t.Number, &t.Subject, &t.Name, &t.Email,
		&t.Department, &t.Topic, &t.Overdue, &t.OpenTasks)
	return t, err
}

func scanEntry(row scannable) (ticket.ThreadEntry, error) {
	var e ticket.ThreadEntry
	var typ string
	err := row.Scan(&e.ID, &e.ThreadID, &typ, &e.Poster, &e.Body, &e.Format)
	e.Type = ticket.EntryType(typ)
	return e, err
}
