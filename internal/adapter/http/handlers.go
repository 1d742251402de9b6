package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/Strob0t/ticketslack/internal/domain/notify"
	"github.com/Strob0t/ticketslack/internal/port/eventbus"
	"github.com/Strob0t/ticketslack/internal/service"
)

// maxEventBodySize bounds host event bodies.
const maxEventBodySize = 4 << 20

// Handlers holds the services the HTTP routes call into.
type Handlers struct {
	Dispatcher *service.Dispatcher
	Settings   *service.SettingsService
}

// eventResponse reports the outcome of a pushed event. Dispatch failures are
// still accepted events: the host is not expected to retry them.
type eventResponse struct {
	service.Result
	Error string `json:"error,omitempty"`
}

// HandleEvent handles POST /api/v1/events/{signal}.
func (h *Handlers) HandleEvent(w http.ResponseWriter, r *http.Request) {
	signal := urlParam(r, "signal")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "event body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	res, err := h.Dispatcher.Dispatch(r.Context(), signal, body)
	switch {
	case errors.Is(err, eventbus.ErrUnknownSignal):
		writeError(w, http.StatusNotFound, "unknown signal: "+signal)
		return
	case errors.Is(err, eventbus.ErrMalformed):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := eventResponse{Result: res}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusAccepted, resp)
}

type settingsResponse struct {
	Values map[string]string `json:"values"`
	Config notify.Config     `json:"config"`
}

// GetSettings handles GET /api/v1/settings.
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.writeSettings(w, r)
}

// UpdateSettings handles PUT /api/v1/settings.
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	values, ok := readJSON[map[string]string](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if err := h.Settings.Save(r.Context(), values); err != nil {
		writeDomainError(w, err, "settings not found")
		return
	}
	h.writeSettings(w, r)
}

func (h *Handlers) writeSettings(w http.ResponseWriter, r *http.Request) {
	values, err := h.Settings.Values(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	cfg, err := h.Settings.Snapshot(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{Values: values, Config: cfg})
}
