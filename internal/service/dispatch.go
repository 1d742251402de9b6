// Package service contains application services.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	tsotel "github.com/Strob0t/ticketslack/internal/adapter/otel"
	"github.com/Strob0t/ticketslack/internal/domain"
	"github.com/Strob0t/ticketslack/internal/domain/notify"
	"github.com/Strob0t/ticketslack/internal/domain/ticket"
	"github.com/Strob0t/ticketslack/internal/logger"
	"github.com/Strob0t/ticketslack/internal/port/cache"
	"github.com/Strob0t/ticketslack/internal/port/database"
	"github.com/Strob0t/ticketslack/internal/port/eventbus"
	"github.com/Strob0t/ticketslack/internal/port/notifier"
)

// Host log titles and messages as operators know them from the help desk.
const (
	titleNotConfigured = "Slack Plugin not configured"
	msgNotConfigured   = "You need to read the Readme and configure a webhook URL before using this."
	titleMisconfigured = "Slack Plugin misconfigured"
	titleIgnored       = "Ignored Message"
	titlePostingIssue  = "Slack posting issue!"
	titleRenderIssue   = "Slack message rendering issue"
	titleLookupIssue   = "Slack ticket lookup issue"
)

// Outcome is how a dispatch ended.
type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeFiltered  Outcome = "filtered" // kind disabled, unknown or first message
	OutcomeIgnored   Outcome = "ignored"  // subject matched the ignore pattern
	OutcomeDropped   Outcome = "dropped"  // owning ticket not found
	OutcomeFailed    Outcome = "failed"
)

// Result describes a finished dispatch.
type Result struct {
	DispatchID string      `json:"dispatch_id"`
	Kind       notify.Kind `json:"kind"`
	Outcome    Outcome     `json:"outcome"`
}

// Dispatcher turns host events into webhook notifications. Every dispatch
// reads its own configuration snapshot, so dispatches share no mutable state
// beyond the compiled pattern cache.
type Dispatcher struct {
	settings *SettingsService
	tickets  database.TicketLookup
	hostLog  database.HostLog
	notifier notifier.Notifier
	patterns cache.Patterns
	metrics  *tsotel.Metrics
	now      func() time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPatternCache caches compiled subject ignore patterns.
func WithPatternCache(p cache.Patterns) DispatcherOption {
	return func(d *Dispatcher) { d.patterns = p }
}

// WithMetrics records dispatch metrics.
func WithMetrics(m *tsotel.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithClock replaces the clock used for message timestamps.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a Dispatcher. A nil hostLog writes host log entries
// to the default slog logger.
func NewDispatcher(
	settings *SettingsService,
	tickets database.TicketLookup,
	hostLog database.HostLog,
	n notifier.Notifier,
	opts ...DispatcherOption,
) *Dispatcher {
	if hostLog == nil {
		hostLog = slogHostLog{log: slog.Default()}
	}
	d := &Dispatcher{
		settings: settings,
		tickets:  tickets,
		hostLog:  hostLog,
		notifier: n,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscriptions returns the signals worth subscribing to under cfg:
// ticket.created when opened tickets notify, threadentry.created when any
// reply kind notifies.
func Subscriptions(cfg notify.Config) []string {
	var signals []string
	if cfg.Rule(notify.KindOpened).Enabled {
		signals = append(signals, eventbus.SignalTicketCreated)
	}
	for _, k := range notify.ReplyKinds {
		if cfg.Rule(k).Enabled {
			signals = append(signals, eventbus.SignalThreadEntryCreated)
			break
		}
	}
	return signals
}

// Handle implements eventbus.Handler.
func (d *Dispatcher) Handle(ctx context.Context, signal string, data []byte) error {
	_, err := d.Dispatch(ctx, signal, data)
	return err
}

// Dispatch decodes an event payload and runs the matching dispatch.
// Malformed payloads return an error wrapping eventbus.ErrMalformed.
func (d *Dispatcher) Dispatch(ctx context.Context, signal string, data []byte) (Result, error) {
	if d.metrics != nil {
		d.metrics.EventsReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("signal", signal)))
	}

	payload, err := eventbus.Decode(signal, data)
	if err != nil {
		slog.WarnContext(ctx, "event rejected", "signal", signal, "error", err)
		return Result{Kind: notify.KindUnknown, Outcome: OutcomeFailed}, err
	}

	switch p := payload.(type) {
	case *eventbus.TicketCreatedPayload:
		return d.HandleTicketCreated(ctx, p.TicketID)
	case *eventbus.ThreadEntryCreatedPayload:
		return d.OnTicketUpdated(ctx, p.Entry())
	default:
		return Result{Kind: notify.KindUnknown, Outcome: OutcomeFailed},
			fmt.Errorf("%w: %s", eventbus.ErrUnknownSignal, signal)
	}
}

// OnTicketCreated notifies about a newly opened ticket.
func (d *Dispatcher) OnTicketCreated(ctx context.Context, t ticket.Ticket) (Result, error) {
	ctx, span, res := d.begin(ctx, eventbus.SignalTicketCreated, notify.KindOpened)
	defer span.End()

	cfg, err := d.settings.Snapshot(ctx)
	if err != nil {
		return d.finish(ctx, span, res, OutcomeFailed, err)
	}
	return d.run(ctx, span, res, notify.Created(t), cfg)
}

// HandleTicketCreated looks up a ticket by id and notifies about its creation.
func (d *Dispatcher) HandleTicketCreated(ctx context.Context, ticketID int64) (Result, error) {
	ctx, span, res := d.begin(ctx, eventbus.SignalTicketCreated, notify.KindOpened)
	defer span.End()

	cfg, err := d.settings.Snapshot(ctx)
	if err != nil {
		return d.finish(ctx, span, res, OutcomeFailed, err)
	}
	if !cfg.Rule(notify.KindOpened).Enabled {
		return d.finish(ctx, span, res, OutcomeFiltered, nil)
	}

	t, err := d.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return d.lookupFailed(ctx, span, res, err)
	}
	return d.run(ctx, span, res, notify.Created(*t), cfg)
}

// OnTicketUpdated notifies about a thread entry posted to a ticket.
func (d *Dispatcher) OnTicketUpdated(ctx context.Context, entry ticket.ThreadEntry) (Result, error) {
	kind := notify.KindForEntry(entry.Type)
	ctx, span, res := d.begin(ctx, eventbus.SignalThreadEntryCreated, kind)
	defer span.End()

	if kind == notify.KindUnknown {
		return d.finish(ctx, span, res, OutcomeFiltered, nil)
	}

	cfg, err := d.settings.Snapshot(ctx)
	if err != nil {
		return d.finish(ctx, span, res, OutcomeFailed, err)
	}
	if !cfg.Rule(kind).Enabled {
		return d.finish(ctx, span, res, OutcomeFiltered, nil)
	}

	t, err := d.tickets.TicketForThread(ctx, entry.ThreadID)
	if err != nil {
		return d.lookupFailed(ctx, span, res, err)
	}
	return d.run(ctx, span, res, notify.Updated(*t, entry), cfg)
}

// run takes an event through filtering, rendering and delivery.
func (d *Dispatcher) run(ctx context.Context, span trace.Span, res Result, ev notify.Event, cfg notify.Config) (Result, error) {
	span.SetAttributes(attribute.Int64("ticket.id", ev.Ticket.ID))

	if !notify.ShouldNotify(ev, cfg) {
		return d.finish(ctx, span, res, OutcomeFiltered, nil)
	}

	re, err := d.subjectPattern(cfg.SubjectIgnore)
	if err != nil {
		cerr := &notify.ConfigError{Reason: "subject ignore pattern", Err: err}
		d.hostLog.LogError(ctx, titleMisconfigured, notify.InvalidRegexMessage)
		return d.finish(ctx, span, res, OutcomeFailed, cerr)
	}
	if notify.SubjectIgnored(ev.Ticket.Subject, re) {
		d.hostLog.LogDebug(ctx, titleIgnored, fmt.Sprintf(
			"Slack notification was not sent because the subject (%s) matched regex (%s).",
			ev.Ticket.Subject, cfg.SubjectIgnore))
		slog.InfoContext(ctx, titleIgnored,
			"ticket_id", ev.Ticket.ID, "subject", ev.Ticket.Subject, "regex", cfg.SubjectIgnore)
		return d.finish(ctx, span, res, OutcomeIgnored, nil)
	}

	if cfg.WebhookURL == "" {
		d.hostLog.LogError(ctx, titleNotConfigured, msgNotConfigured)
		return d.finish(ctx, span, res, OutcomeFailed, &notify.ConfigError{Reason: "webhook url not set"})
	}

	rendered, err := notify.Render(ev, cfg)
	if err != nil {
		d.hostLog.LogError(ctx, titleRenderIssue, err.Error())
		return d.finish(ctx, span, res, OutcomeFailed, err)
	}
	msg, err := notify.Build(rendered, ev.Ticket, cfg, d.now())
	if err != nil {
		d.hostLog.LogError(ctx, titleRenderIssue, err.Error())
		return d.finish(ctx, span, res, OutcomeFailed, err)
	}

	if err := d.deliver(ctx, ev, cfg.WebhookURL, msg); err != nil {
		d.hostLog.LogError(ctx, titlePostingIssue, err.Error())
		return d.finish(ctx, span, res, OutcomeFailed, err)
	}
	return d.finish(ctx, span, res, OutcomeDelivered, nil)
}

func (d *Dispatcher) deliver(ctx context.Context, ev notify.Event, url string, msg slack.WebhookMessage) error {
	ctx, span := tsotel.StartDeliverySpan(ctx, ev.Ticket.ID, string(ev.Kind))
	defer span.End()

	start := time.Now()
	err := d.notifier.Send(ctx, url, msg)
	if d.metrics != nil {
		d.metrics.DeliveryDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.Bool("success", err == nil)))
	}

	if errors.Is(err, notifier.ErrNotConfigured) {
		err = &notify.ConfigError{Reason: "webhook url not set", Err: err}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		var de *notify.DeliveryError
		if errors.As(err, &de) {
			span.SetAttributes(attribute.Int("http.response.status_code", de.StatusCode))
		}
	}
	return err
}

// subjectPattern compiles the ignore pattern, consulting the cache first.
// An empty pattern yields nil.
func (d *Dispatcher) subjectPattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	if d.patterns != nil {
		if re, ok := d.patterns.Get(pattern); ok {
			return re, nil
		}
	}
	re, err := notify.CompileSubjectIgnore(pattern)
	if err != nil {
		return nil, err
	}
	if d.patterns != nil {
		d.patterns.Set(pattern, re)
	}
	return re, nil
}

// lookupFailed ends a dispatch whose ticket could not be loaded. Missing
// tickets are dropped without an error.
func (d *Dispatcher) lookupFailed(ctx context.Context, span trace.Span, res Result, err error) (Result, error) {
	if errors.Is(err, domain.ErrNotFound) {
		slog.DebugContext(ctx, "ticket not found, dropping event", "error", err)
		return d.finish(ctx, span, res, OutcomeDropped, nil)
	}
	d.hostLog.LogError(ctx, titleLookupIssue, err.Error())
	return d.finish(ctx, span, res, OutcomeFailed, err)
}

func (d *Dispatcher) begin(ctx context.Context, signal string, kind notify.Kind) (context.Context, trace.Span, Result) {
	id := uuid.NewString()
	ctx = logger.WithDispatchID(ctx, id)
	ctx, span := tsotel.StartDispatchSpan(ctx, id, signal)
	span.SetAttributes(attribute.String("notify.kind", string(kind)))
	return ctx, span, Result{DispatchID: id, Kind: kind}
}

// finish records the outcome on the span, the metrics and the diagnostic log.
func (d *Dispatcher) finish(ctx context.Context, span trace.Span, res Result, outcome Outcome, err error) (Result, error) {
	res.Outcome = outcome
	span.SetAttributes(attribute.String("dispatch.outcome", string(outcome)))
	if d.metrics != nil {
		d.metrics.Dispatches.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", string(res.Kind)),
			attribute.String("outcome", string(outcome)),
		))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(outcome))
		logDispatchError(ctx, res, err)
		return res, err
	}

	slog.DebugContext(ctx, "dispatch finished", "kind", res.Kind, "outcome", outcome)
	return res, nil
}

func logDispatchError(ctx context.Context, res Result, err error) {
	var (
		de *notify.DeliveryError
		ce *notify.ConfigError
		re *notify.RenderError
	)
	switch {
	case errors.As(err, &de):
		slog.ErrorContext(ctx, "Error posting to Slack",
			"kind", res.Kind, "url", de.URL, "status", de.StatusCode, "error", de.Err)
	case errors.As(err, &ce):
		slog.ErrorContext(ctx, "notification not configured",
			"kind", res.Kind, "reason", ce.Reason, "error", err)
	case errors.As(err, &re):
		slog.ErrorContext(ctx, "notification rendering failed",
			"kind", res.Kind, "op", re.Op, "error", err)
	default:
		slog.ErrorContext(ctx, "dispatch failed", "kind", res.Kind, "error", err)
	}
}
