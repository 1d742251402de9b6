package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	tsotel "github.com/Strob0t/ticketslack/internal/adapter/otel"
	"github.com/Strob0t/ticketslack/internal/domain/notify"
	"github.com/Strob0t/ticketslack/internal/domain/ticket"
	"github.com/Strob0t/ticketslack/internal/port/eventbus"
)

func TestOnTicketCreatedDelivers(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(enabledValues(), WithClock(func() time.Time { return now }))

	res, err := f.d.OnTicketCreated(context.Background(), sampleTicket())
	if err != nil {
		t.Fatalf("OnTicketCreated: %v", err)
	}
	if res.Outcome != OutcomeDelivered || res.Kind != notify.KindOpened {
		t.Fatalf("result = %+v", res)
	}
	if res.DispatchID == "" {
		t.Error("dispatch id should be set")
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(f.notifier.sent))
	}

	sent := f.notifier.sent[0]
	if sent.url != testWebhookURL {
		t.Errorf("url = %q", sent.url)
	}
	att := sent.msg.Attachments[0]
	if !strings.HasPrefix(att.Pretext, "New Ticket <https://help.example.com/scp/tickets.php?id=7|#100007>") {
		t.Errorf("pretext = %q", att.Pretext)
	}
	if att.Color != notify.DefaultOpenedColor {
		t.Errorf("color = %q", att.Color)
	}
	if !strings.Contains(att.Text, "It is on fire.") {
		t.Errorf("text = %q", att.Text)
	}
	if string(att.Ts) != "1772366400" {
		t.Errorf("ts = %q", att.Ts)
	}
	if len(f.hostLog.entries) != 0 {
		t.Errorf("unexpected host log entries: %+v", f.hostLog.entries)
	}
}

func TestOnTicketCreatedDisabled(t *testing.T) {
	values := enabledValues()
	values[notify.EnabledKey(notify.KindOpened)] = "0"
	f := newFixture(values)

	res, err := f.d.OnTicketCreated(context.Background(), sampleTicket())
	if err != nil {
		t.Fatalf("OnTicketCreated: %v", err)
	}
	if res.Outcome != OutcomeFiltered {
		t.Errorf("outcome = %s, want filtered", res.Outcome)
	}
	if len(f.notifier.sent) != 0 {
		t.Error("no message should be sent")
	}
}

func TestOnTicketUpdatedNoteDisabled(t *testing.T) {
	values := enabledValues()
	delete(values, notify.EnabledKey(notify.KindInternalNote))
	f := newFixture(values)

	entry := ticket.ThreadEntry{ID: 9, ThreadID: 3, Type: ticket.EntryInternalNote, Poster: "Sam", Body: "note", Format: ticket.FormatText}
	res, err := f.d.OnTicketUpdated(context.Background(), entry)
	if err != nil {
		t.Fatalf("OnTicketUpdated: %v", err)
	}
	if res.Outcome != OutcomeFiltered {
		t.Errorf("outcome = %s, want filtered", res.Outcome)
	}
	if len(f.notifier.sent) != 0 {
		t.Error("no message should be sent")
	}
}

func TestOnTicketUpdatedAgentReply(t *testing.T) {
	f := newFixture(enabledValues())

	entry := ticket.ThreadEntry{ID: 9, ThreadID: 3, Type: ticket.EntryAgentReply, Poster: "Sam Agent", Body: "On my way <3", Format: ticket.FormatText}
	res, err := f.d.OnTicketUpdated(context.Background(), entry)
	if err != nil {
		t.Fatalf("OnTicketUpdated: %v", err)
	}
	if res.Outcome != OutcomeDelivered || res.Kind != notify.KindAgentReply {
		t.Fatalf("result = %+v", res)
	}
	att := f.notifier.sent[0].msg.Attachments[0]
	if !strings.HasPrefix(att.Pretext, "Agent Sam Agent replied to ticket <") {
		t.Errorf("pretext = %q", att.Pretext)
	}
	if !strings.Contains(att.Text, "On my way &lt;3") {
		t.Errorf("text = %q", att.Text)
	}
	if att.Color != notify.DefaultReplyColor {
		t.Errorf("color = %q", att.Color)
	}
}

func TestOnTicketUpdatedFirstMessageSkipped(t *testing.T) {
	f := newFixture(enabledValues())

	first := sampleTicket().Messages[0]
	res, err := f.d.OnTicketUpdated(context.Background(), first)
	if err != nil {
		t.Fatalf("OnTicketUpdated: %v", err)
	}
	if res.Outcome != OutcomeFiltered {
		t.Errorf("outcome = %s, want filtered", res.Outcome)
	}
	if len(f.notifier.sent) != 0 {
		t.Error("the creation message must not notify twice")
	}
}

func TestOnTicketUpdatedUnknownType(t *testing.T) {
	f := newFixture(enabledValues())

	entry := ticket.ThreadEntry{ID: 9, ThreadID: 3, Type: "X", Body: "event"}
	res, err := f.d.OnTicketUpdated(context.Background(), entry)
	if err != nil {
		t.Fatalf("OnTicketUpdated: %v", err)
	}
	if res.Kind != notify.KindUnknown || res.Outcome != OutcomeFiltered {
		t.Errorf("result = %+v", res)
	}
}

func TestOnTicketUpdatedMissingThreadDropped(t *testing.T) {
	f := newFixture(enabledValues())

	entry := ticket.ThreadEntry{ID: 9, ThreadID: 999, Type: ticket.EntryUserReply, Body: "hello", Format: ticket.FormatText}
	res, err := f.d.OnTicketUpdated(context.Background(), entry)
	if err != nil {
		t.Fatalf("missing ticket should not be an error: %v", err)
	}
	if res.Outcome != OutcomeDropped {
		t.Errorf("outcome = %s, want dropped", res.Outcome)
	}
	if len(f.notifier.sent) != 0 || len(f.hostLog.entries) != 0 {
		t.Error("missing ticket should be dropped silently")
	}
}

func TestLookupErrorFails(t *testing.T) {
	f := newFixture(enabledValues())
	f.tickets.err = errors.New("connection reset")

	res, err := f.d.HandleTicketCreated(context.Background(), 7)
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Outcome != OutcomeFailed {
		t.Errorf("outcome = %s, want failed", res.Outcome)
	}
	if len(f.hostLog.entries) != 1 || f.hostLog.entries[0].level != "error" {
		t.Errorf("host log = %+v", f.hostLog.entries)
	}
}

func TestSubjectIgnored(t *testing.T) {
	values := enabledValues()
	values[notify.KeySubjectIgnore] = "spam"
	f := newFixture(values)

	tk := sampleTicket()
	tk.Subject = "RE: SPAM offer"
	res, err := f.d.OnTicketCreated(context.Background(), tk)
	if err != nil {
		t.Fatalf("OnTicketCreated: %v", err)
	}
	if res.Outcome != OutcomeIgnored {
		t.Errorf("outcome = %s, want ignored", res.Outcome)
	}
	if len(f.notifier.sent) != 0 {
		t.Error("ignored subject must not be sent")
	}
	if len(f.hostLog.entries) != 1 {
		t.Fatalf("host log = %+v", f.hostLog.entries)
	}
	e := f.hostLog.entries[0]
	if e.level != "debug" || e.title != "Ignored Message" {
		t.Errorf("entry = %+v", e)
	}
	if !strings.Contains(e.message, "RE: SPAM offer") || !strings.Contains(e.message, "(spam)") {
		t.Errorf("message should name subject and regex: %q", e.message)
	}
}

func TestSubjectIgnoredOnThreadEntries(t *testing.T) {
	tests := []struct {
		name string
		typ  ticket.EntryType
		kind notify.Kind
	}{
		{"internal note", ticket.EntryInternalNote, notify.KindInternalNote},
		{"agent reply", ticket.EntryAgentReply, notify.KindAgentReply},
		{"user reply", ticket.EntryUserReply, notify.KindUserReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := enabledValues()
			values[notify.KeySubjectIgnore] = "spam"
			f := newFixture(values)
			tk := sampleTicket()
			tk.Subject = "SPAM offer"
			f.tickets.byID[tk.ID] = tk

			entry := ticket.ThreadEntry{ID: 9, ThreadID: 3, Type: tt.typ, Poster: "Sam", Body: "buy now", Format: ticket.FormatText}
			res, err := f.d.OnTicketUpdated(context.Background(), entry)
			if err != nil {
				t.Fatalf("OnTicketUpdated: %v", err)
			}
			if res.Outcome != OutcomeIgnored || res.Kind != tt.kind {
				t.Errorf("result = %+v, want ignored %s", res, tt.kind)
			}
			if len(f.notifier.sent) != 0 {
				t.Errorf("sent %d messages, want 0", len(f.notifier.sent))
			}
		})
	}
}

func TestSubjectPatternCached(t *testing.T) {
	values := enabledValues()
	values[notify.KeySubjectIgnore] = "spam"
	patterns := &mockPatterns{}
	f := newFixture(values, WithPatternCache(patterns))

	for range 3 {
		if _, err := f.d.OnTicketCreated(context.Background(), sampleTicket()); err != nil {
			t.Fatalf("OnTicketCreated: %v", err)
		}
	}
	if patterns.hits != 2 {
		t.Errorf("cache hits = %d, want 2", patterns.hits)
	}
	if len(f.notifier.sent) != 3 {
		t.Errorf("sent = %d, want 3", len(f.notifier.sent))
	}
}

func TestInvalidStoredPatternFails(t *testing.T) {
	values := enabledValues()
	values[notify.KeySubjectIgnore] = "(unclosed"
	f := newFixture(values)

	res, err := f.d.OnTicketCreated(context.Background(), sampleTicket())
	var ce *notify.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if res.Outcome != OutcomeFailed {
		t.Errorf("outcome = %s, want failed", res.Outcome)
	}
	if len(f.notifier.sent) != 0 {
		t.Error("nothing should be sent")
	}
}

func TestMissingWebhookURL(t *testing.T) {
	values := enabledValues()
	delete(values, notify.KeyWebhookURL)
	f := newFixture(values)

	res, err := f.d.OnTicketCreated(context.Background(), sampleTicket())
	var ce *notify.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if res.Outcome != OutcomeFailed {
		t.Errorf("outcome = %s, want failed", res.Outcome)
	}
	if len(f.notifier.sent) != 0 {
		t.Error("nothing should be sent")
	}
	if len(f.hostLog.entries) != 1 || f.hostLog.entries[0].title != "Slack Plugin not configured" {
		t.Errorf("host log = %+v", f.hostLog.entries)
	}
}

func TestDeliveryFailureLogged(t *testing.T) {
	f := newFixture(enabledValues())
	f.notifier.err = &notify.DeliveryError{URL: testWebhookURL, StatusCode: 500, Err: errors.New("server error")}

	res, err := f.d.OnTicketCreated(context.Background(), sampleTicket())
	var de *notify.DeliveryError
	if !errors.As(err, &de) || de.StatusCode != 500 {
		t.Fatalf("expected DeliveryError 500, got %v", err)
	}
	if res.Outcome != OutcomeFailed {
		t.Errorf("outcome = %s, want failed", res.Outcome)
	}
	if len(f.notifier.sent) != 1 {
		t.Errorf("attempts = %d, want exactly 1", len(f.notifier.sent))
	}
	if len(f.hostLog.entries) != 1 {
		t.Fatalf("host log = %+v", f.hostLog.entries)
	}
	e := f.hostLog.entries[0]
	if e.title != "Slack posting issue!" || !strings.Contains(e.message, "500") {
		t.Errorf("entry = %+v", e)
	}
}

func TestMalformedTemplateFails(t *testing.T) {
	values := enabledValues()
	values[notify.KeyTemplate] = "broken %{ticket.subject"
	f := newFixture(values)

	_, err := f.d.OnTicketCreated(context.Background(), sampleTicket())
	var re *notify.RenderError
	if !errors.As(err, &re) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if len(f.notifier.sent) != 0 {
		t.Error("nothing should be sent")
	}
}

func TestDispatchSignals(t *testing.T) {
	f := newFixture(enabledValues())
	ctx := context.Background()

	res, err := f.d.Dispatch(ctx, eventbus.SignalTicketCreated, []byte(`{"ticket_id":7}`))
	if err != nil || res.Outcome != OutcomeDelivered {
		t.Fatalf("ticket.created: %+v %v", res, err)
	}

	body := `{"id":12,"thread_id":3,"type":"M","poster":"Jane Doe","body":"Still burning","format":"text"}`
	res, err = f.d.Dispatch(ctx, eventbus.SignalThreadEntryCreated, []byte(body))
	if err != nil || res.Outcome != OutcomeDelivered || res.Kind != notify.KindUserReply {
		t.Fatalf("threadentry.created: %+v %v", res, err)
	}

	if len(f.notifier.sent) != 2 {
		t.Errorf("sent = %d, want 2", len(f.notifier.sent))
	}
}

func TestDispatchRejectsBadPayloads(t *testing.T) {
	f := newFixture(enabledValues())
	ctx := context.Background()

	if _, err := f.d.Dispatch(ctx, eventbus.SignalTicketCreated, []byte(`{not json`)); !errors.Is(err, eventbus.ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
	if err := f.d.Handle(ctx, "ticket.closed", []byte(`{}`)); !errors.Is(err, eventbus.ErrUnknownSignal) {
		t.Errorf("expected ErrUnknownSignal, got %v", err)
	}
	if len(f.notifier.sent) != 0 {
		t.Error("nothing should be sent")
	}
}

func TestHandleTicketCreatedMissingTicket(t *testing.T) {
	f := newFixture(enabledValues())

	res, err := f.d.HandleTicketCreated(context.Background(), 404)
	if err != nil {
		t.Fatalf("HandleTicketCreated: %v", err)
	}
	if res.Outcome != OutcomeDropped {
		t.Errorf("outcome = %s, want dropped", res.Outcome)
	}
}

func TestSubscriptions(t *testing.T) {
	tests := []struct {
		name    string
		enabled []notify.Kind
		want    []string
	}{
		{"none", nil, nil},
		{"opened only", []notify.Kind{notify.KindOpened}, []string{eventbus.SignalTicketCreated}},
		{"replies only", []notify.Kind{notify.KindUserReply, notify.KindAgentReply}, []string{eventbus.SignalThreadEntryCreated}},
		{"all", notify.RuleKinds, []string{eventbus.SignalTicketCreated, eventbus.SignalThreadEntryCreated}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := map[string]string{}
			for _, k := range tt.enabled {
				values[notify.EnabledKey(k)] = "1"
			}
			got := Subscriptions(notify.ConfigFromValues(values, ""))
			if !slices.Equal(got, tt.want) {
				t.Errorf("Subscriptions() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDispatchMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := tsotel.NewMetricsFrom(mp)
	if err != nil {
		t.Fatalf("NewMetricsFrom: %v", err)
	}
	f := newFixture(enabledValues(), WithMetrics(m))

	if _, err := f.d.Dispatch(context.Background(), eventbus.SignalTicketCreated, []byte(`{"ticket_id":7}`)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	got := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			got[md.Name] = true
		}
	}
	for _, name := range []string{"ticketslack.events.received", "ticketslack.dispatches", "ticketslack.delivery.duration_seconds"} {
		if !got[name] {
			t.Errorf("metric %s not recorded", name)
		}
	}
}
