package notify

import (
	"fmt"
)

// ConfigError reports plugin settings that prevent a dispatch.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Reason, e.Err)
	}
	return "config: " + e.Reason
}

func (e *ConfigError) Unwrap() error { return e.Err }

// RenderError reports a failure turning ticket content into message text.
type RenderError struct {
	Op  string
	Err error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Op, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// DeliveryError reports a webhook POST that did not end in HTTP 200.
// StatusCode is 0 when the request never got a response.
type DeliveryError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("error sending to: %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("error sending to: %s http code: %d: %v", e.URL, e.StatusCode, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
