package service

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"sync"

	"github.com/slack-go/slack"

	"github.com/Strob0t/ticketslack/internal/domain"
	"github.com/Strob0t/ticketslack/internal/domain/notify"
	"github.com/Strob0t/ticketslack/internal/domain/ticket"
	"github.com/Strob0t/ticketslack/internal/port/cache"
	"github.com/Strob0t/ticketslack/internal/port/database"
	"github.com/Strob0t/ticketslack/internal/port/notifier"
)

// Ensure mock types implement their interfaces at compile time.
var (
	_ database.SettingsStore = (*mockSettings)(nil)
	_ database.TicketLookup  = (*mockTickets)(nil)
	_ database.HostLog       = (*mockHostLog)(nil)
	_ notifier.Notifier      = (*mockNotifier)(nil)
	_ cache.Patterns         = (*mockPatterns)(nil)
)

const testWebhookURL = "https://hooks.example.com/T000/B000"

type mockSettings struct {
	values  map[string]string
	loadErr error
	saves   int
}

func (m *mockSettings) LoadSettings(_ context.Context) (map[string]string, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return maps.Clone(m.values), nil
}

func (m *mockSettings) SaveSettings(_ context.Context, values map[string]string) error {
	m.saves++
	if m.values == nil {
		m.values = map[string]string{}
	}
	maps.Copy(m.values, values)
	return nil
}

type mockTickets struct {
	byID     map[int64]ticket.Ticket
	byThread map[int64]int64
	err      error
}

func (m *mockTickets) GetTicket(_ context.Context, id int64) (*ticket.Ticket, error) {
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("ticket %d: %w", id, domain.ErrNotFound)
	}
	return &t, nil
}

func (m *mockTickets) TicketForThread(ctx context.Context, threadID int64) (*ticket.Ticket, error) {
	id, ok := m.byThread[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %d: %w", threadID, domain.ErrNotFound)
	}
	return m.GetTicket(ctx, id)
}

type hostLogEntry struct {
	level   string
	title   string
	message string
}

type mockHostLog struct {
	entries []hostLogEntry
}

func (m *mockHostLog) LogError(_ context.Context, title, message string) {
	m.entries = append(m.entries, hostLogEntry{"error", title, message})
}

func (m *mockHostLog) LogDebug(_ context.Context, title, message string) {
	m.entries = append(m.entries, hostLogEntry{"debug", title, message})
}

type sentMessage struct {
	url string
	msg slack.WebhookMessage
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (m *mockNotifier) Name() string { return "mock" }

func (m *mockNotifier) Send(_ context.Context, url string, msg slack.WebhookMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{url, msg})
	return m.err
}

type mockPatterns struct {
	m    map[string]*regexp.Regexp
	hits int
}

func (p *mockPatterns) Get(pattern string) (*regexp.Regexp, bool) {
	re, ok := p.m[pattern]
	if ok {
		p.hits++
	}
	return re, ok
}

func (p *mockPatterns) Set(pattern string, re *regexp.Regexp) {
	if p.m == nil {
		p.m = map[string]*regexp.Regexp{}
	}
	p.m[pattern] = re
}

// enabledValues returns settings with a webhook URL and every rule enabled.
func enabledValues() map[string]string {
	values := map[string]string{notify.KeyWebhookURL: testWebhookURL}
	for _, k := range notify.RuleKinds {
		values[notify.EnabledKey(k)] = "1"
	}
	return values
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

type fixture struct {
	settings *mockSettings
	tickets  *mockTickets
	hostLog  *mockHostLog
	notifier *mockNotifier
	d        *Dispatcher
}

func newFixture(values map[string]string, opts ...DispatcherOption) *fixture {
	t := sampleTicket()
	f := &fixture{
		settings: &mockSettings{values: values},
		tickets: &mockTickets{
			byID:     map[int64]ticket.Ticket{t.ID: t},
			byThread: map[int64]int64{3: t.ID},
		},
		hostLog:  &mockHostLog{},
		notifier: &mockNotifier{},
	}
	f.d = NewDispatcher(
		NewSettingsService(f.settings, "https://help.example.com/"),
		f.tickets, f.hostLog, f.notifier, opts...,
	)
	return f
}
