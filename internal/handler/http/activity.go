package http

import (
	"log/slog"
	"net/http"

	"github.com/ecclesia-hub/admin-client/internal/activity"
	apperrors "github.com/ecclesia-hub/admin-client/pkg/errors"
	"github.com/ecclesia-hub/admin-client/pkg/httputil"
)

// ActivityRequest batches interaction signals observed by the browser.
type ActivityRequest struct {
	Signals []string `json:"signals" validate:"required,min=1,max=100,dive,required"`
}

// ActivityHandler feeds browser interaction into the activity bus.
type ActivityHandler struct {
	bus    *activity.Bus
	logger *slog.Logger
}

// NewActivityHandler creates a new activity HTTP handler.
func NewActivityHandler(bus *activity.Bus, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{bus: bus, logger: logger}
}

// Post handles POST /api/activity
func (h *ActivityHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req ActivityRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	signals := make([]activity.Signal, 0, len(req.Signals))
	for _, raw := range req.Signals {
		s, ok := activity.ParseSignal(raw)
		if !ok {
			httputil.WriteError(w, r, apperrors.InvalidInput("unknown activity signal: "+raw), h.logger)
			return
		}
		signals = append(signals, s)
	}

	for _, s := range signals {
		h.bus.Dispatch(r.Context(), s)
	}
	httputil.WriteData(w, http.StatusAccepted, map[string]int{"accepted": len(signals)})
}
