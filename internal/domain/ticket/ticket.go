// Package ticket defines the help-desk entities the notifier reads from the host.
package ticket

// EntryType is the single-letter type tag the host stores on a thread entry.
type EntryType string

const (
	EntryInternalNote EntryType = "N" // staff internal note
	EntryUserReply    EntryType = "M" // message from the end user
	EntryAgentReply   EntryType = "R" // staff response
)

// Body formats a thread entry can carry.
const (
	FormatHTML = "html"
	FormatText = "text"
)

// ThreadEntry is a single message, note or reply within a ticket thread.
type ThreadEntry struct {
	ID       int64     `json:"id"`
	ThreadID int64     `json:"thread_id"`
	Type     EntryType `json:"type"`
	Poster   string    `json:"poster"`
	Body     string    `json:"body"`
	Format   string    `json:"format"`
}

// IsHTML reports whether the body must be converted before it is displayed.
// Entries without an explicit format are treated as HTML, which is what the
// host stores by default.
func (e ThreadEntry) IsHTML() bool {
	return e.Format != FormatText
}

// Ticket is the subset of a host ticket the notifier needs.
type Ticket struct {
	ID         int64  `json:"id"`
	Number     string `json:"number"`
	Subject    string `json:"subject"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"dept"`
	Topic      string `json:"topic"`
	Overdue    bool   `json:"is_overdue"`
	OpenTasks  int    `json:"open_tasks"`

	// Messages holds the user-visible messages in thread order.
	// Messages[0] is the message the ticket was opened with.
	Messages []ThreadEntry `json:"messages"`
}

// FirstMessage returns the message the ticket was created with.
func (t *Ticket) FirstMessage() (ThreadEntry, bool) {
	if len(t.Messages) == 0 {
		return ThreadEntry{}, false
	}
	return t.Messages[0], true
}

// IsFirstMessage reports whether entry is the ticket's creation message.
func (t *Ticket) IsFirstMessage(entry ThreadEntry) bool {
	first, ok := t.FirstMessage()
	return ok && first.ID == entry.ID
}
