// Package notify holds the notification dispatch pipeline: event filtering,
// content rendering and payload construction for Slack-compatible webhooks.
package notify

import "github.com/Strob0t/ticketslack/internal/domain/ticket"

// Kind identifies which configuration rule governs an event.
type Kind string

const (
	KindOpened       Kind = "opened"
	KindInternalNote Kind = "internal-note"
	KindUserReply    Kind = "user-reply"
	KindAgentReply   Kind = "agent-reply"
	KindUnknown      Kind = "unknown"
)

// ReplyKinds are the kinds delivered through the thread entry signal.
var ReplyKinds = []Kind{KindInternalNote, KindUserReply, KindAgentReply}

// RuleKinds are the kinds carrying a configuration rule.
var RuleKinds = []Kind{KindOpened, KindInternalNote, KindUserReply, KindAgentReply}

// IsUpdate reports whether the kind originates from a thread entry.
func (k Kind) IsUpdate() bool {
	return k != KindOpened
}

// KindForEntry classifies a thread entry by its type tag.
func KindForEntry(t ticket.EntryType) Kind {
	switch t {
	case ticket.EntryInternalNote:
		return KindInternalNote
	case ticket.EntryUserReply:
		return KindUserReply
	case ticket.EntryAgentReply:
		return KindAgentReply
	default:
		return KindUnknown
	}
}

// Event is a ticket lifecycle event on its way through the pipeline.
// Entry is nil for KindOpened.
type Event struct {
	Kind   Kind
	Ticket ticket.Ticket
	Entry  *ticket.ThreadEntry
}

// Created builds the event for a newly opened ticket.
func Created(t ticket.Ticket) Event {
	return Event{Kind: KindOpened, Ticket: t}
}

// Updated builds the event for a thread entry posted to t.
func Updated(t ticket.Ticket, entry ticket.ThreadEntry) Event {
	return Event{Kind: KindForEntry(entry.Type), Ticket: t, Entry: &entry}
}

// actor returns the usertype and edittype words used in reply headings.
func (k Kind) actor() (usertype, edittype string) {
	switch k {
	case KindInternalNote:
		return "Agent", "added internal note to"
	case KindUserReply:
		return "User", "replied to"
	case KindAgentReply:
		return "Agent", "replied to"
	default:
		return "system", "edited"
	}
}
