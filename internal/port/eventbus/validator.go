package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownSignal is returned for signals the notifier does not handle.
	ErrUnknownSignal = errors.New("unknown signal")

	// ErrMalformed marks a payload that can never be processed.
	ErrMalformed = errors.New("malformed payload")
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given signal.
func Validate(signal string, data []byte) error {
	_, err := Decode(signal, data)
	return err
}

// Decode validates data and returns the typed payload for signal:
// *TicketCreatedPayload or *ThreadEntryCreatedPayload.
func Decode(signal string, data []byte) (any, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: invalid JSON on signal %s", ErrMalformed, signal)
	}

	switch signal {
	case SignalTicketCreated:
		var p TicketCreatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: schema validation failed for %s: %w", ErrMalformed, signal, err)
		}
		if p.TicketID <= 0 {
			return nil, fmt.Errorf("%w: %s requires ticket_id", ErrMalformed, signal)
		}
		return &p, nil

	case SignalThreadEntryCreated:
		var p ThreadEntryCreatedPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: schema validation failed for %s: %w", ErrMalformed, signal, err)
		}
		if p.ID <= 0 || p.ThreadID <= 0 {
			return nil, fmt.Errorf("%w: %s requires id and thread_id", ErrMalformed, signal)
		}
		return &p, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSignal, signal)
	}
}
