package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claude/liftlog/internal/artifact"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

// Webhook response statuses.
const (
	statusOK       = "ok"
	statusNoEvents = "no events"
	statusError    = "error"
)

type webhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLineWebhook always answers 200 so the platform does not redeliver;
// the outcome is carried in the status field.
func (s *Server) handleLineWebhook(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error("webhook panic", "panic", rec)
			writeJSON(w, http.StatusOK, webhookResponse{Status: statusError, Message: fmt.Sprint(rec)})
		}
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		s.webhookError(w, fmt.Errorf("reading body: %w", err))
		return
	}
	evts, err := models.DecodeWebhook(body)
	if err != nil {
		s.webhookError(w, err)
		return
	}
	if len(evts) == 0 {
		writeJSON(w, http.StatusOK, webhookResponse{Status: statusNoEvents})
		return
	}

	// Processing outlives a dropped connection so a batch is never half applied.
	ctx := context.WithoutCancel(r.Context())
	outcomes, err := s.events.HandleEvents(ctx, evts)
	if err != nil {
		s.webhookError(w, err)
		return
	}
	s.log.Info("webhook processed", "events", len(evts), "outcomes", outcomes)
	writeJSON(w, http.StatusOK, webhookResponse{Status: statusOK})
}

func (s *Server) webhookError(w http.ResponseWriter, err error) {
	s.log.Error("webhook failed", "error", err)
	writeJSON(w, http.StatusOK, webhookResponse{Status: statusError, Message: err.Error()})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	result, err := s.exports.Export(r.Context())
	if err != nil {
		s.log.Error("export failed", "error", err)
		writeJSON(w, errorStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r, s.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date: " + err.Error()})
		return
	}
	filter := models.RecordFilter{
		SenderID: r.URL.Query().Get("sender"),
		Exercise: r.URL.Query().Get("exercise"),
		Start:    start,
		End:      end,
	}
	entries, err := s.exports.History(r.Context(), filter)
	if err != nil {
		writeJSON(w, errorStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if s.artifacts == nil {
		http.NotFound(w, r)
		return
	}
	path, err := s.artifacts.Path(chi.URLParam(r, "token"), chi.URLParam(r, "name"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	http.ServeFile(w, r, path)
}

func errorStatus(err error) int {
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, artifact.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, storage.ErrLockTimeout) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseDateRange reads optional start and end dates (YYYY-MM-DD, in loc).
// Both are inclusive; the returned end is the following midnight.
func parseDateRange(r *http.Request, loc *time.Location) (start, end time.Time, err error) {
	if v := r.URL.Query().Get("start"); v != "" {
		start, err = time.ParseInLocation(time.DateOnly, v, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		end, err = time.ParseInLocation(time.DateOnly, v, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}
