package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/portaoweb/portao-core/internal/gate"
)

// handleCommand relays one gate command to the controller.
//
// The outcome is always answered with HTTP 200 and the Result body; the UI
// reads success from the payload, not from the status code.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	cmd, err := gate.ParseCommand(chi.URLParam(r, "command"))
	if err != nil {
		writeNotFound(w, err.Error())
		return
	}

	s.logger.Info("command requested",
		"command", cmd,
		"subject", tokenSubject(r),
		"request_id", r.Context().Value(ctxKeyRequestID),
	)

	// The relay's own timeout bounds the call; a browser that navigates away
	// must not abort a command already on its way to the gate.
	result := s.relay.Send(context.WithoutCancel(r.Context()), cmd)
	writeJSON(w, http.StatusOK, result)
}
