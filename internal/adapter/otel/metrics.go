package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "ticketslack"

// Metrics holds all ticketslack metric instruments.
type Metrics struct {
	EventsReceived     metric.Int64Counter
	Dispatches         metric.Int64Counter
	DeliveryDuration   metric.Float64Histogram
	BreakerTransitions metric.Int64Counter
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsFrom(otel.GetMeterProvider())
}

// NewMetricsFrom creates all metric instruments on mp.
func NewMetricsFrom(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.EventsReceived, err = meter.Int64Counter("ticketslack.events.received",
		metric.WithDescription("Host events received, by signal"))
	if err != nil {
		return nil, err
	}

	m.Dispatches, err = meter.Int64Counter("ticketslack.dispatches",
		metric.WithDescription("Completed dispatches, by kind and outcome"))
	if err != nil {
		return nil, err
	}

	m.DeliveryDuration, err = meter.Float64Histogram("ticketslack.delivery.duration_seconds",
		metric.WithDescription("Webhook POST duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.BreakerTransitions, err = meter.Int64Counter("ticketslack.breaker.transitions",
		metric.WithDescription("Delivery circuit breaker state changes"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
