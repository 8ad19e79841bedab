package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/portaoweb/portao-core/internal/gate"
)

// Status report responses. The controller firmware matches on these texts.
const (
	statusAcceptedText = "Status recebido com sucesso."
	statusRejectedText = `Corpo da requisição inválido. Esperado {"status": "..."}.`
)

// statusReportRequest is the body the controller posts. Status is a pointer
// so a missing field can be told apart from an empty one in logs.
type statusReportRequest struct {
	Status *string `json:"status"`
}

// handleReportStatus accepts a status report from the controller.
func (s *Server) handleReportStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("malformed status report", "error", err)
		writeText(w, http.StatusBadRequest, statusRejectedText)
		return
	}
	if req.Status == nil {
		s.logger.Warn("status report without status field")
		writeText(w, http.StatusBadRequest, statusRejectedText)
		return
	}

	if err := s.broadcaster.Report(context.WithoutCancel(r.Context()), *req.Status, gate.SourceHTTP); err != nil {
		s.logger.Warn("status report rejected", "error", err)
		writeText(w, http.StatusBadRequest, statusRejectedText)
		return
	}

	writeText(w, http.StatusOK, statusAcceptedText)
}

// handleGetStatus returns the current gate status.
func (s *Server) handleGetStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": s.broadcaster.Current(),
	})
}

// handleStatusHistory returns recent accepted reports, newest first.
func (s *Server) handleStatusHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeNotFound(w, "status history is disabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := s.history.GetHistory(r.Context(), limit)
	if err != nil {
		s.logger.Error("reading status history failed", "error", err)
		writeInternalError(w, "failed to read status history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"history": entries,
		"count":   len(entries),
	})
}
