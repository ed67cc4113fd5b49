package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"ctifeed/internal/domain"
	"ctifeed/internal/runguard"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ingest(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Pipeline.RunIngestionCycle(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) retention(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Pipeline.RunRetention(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// runAll runs ingestion, which includes retention. Pre-processing and clustering are
// separate jobs that read what ingestion persisted.
func (s *Server) runAll(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Pipeline.RunIngestionCycle(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"ingest": report,
	})
}

func (s *Server) results(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Reader.ListResults(r.Context()))
}

func (s *Server) article(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.Reader.GetArticle(r.Context(), r.URL.Query().Get("link"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) listSaved(w http.ResponseWriter, r *http.Request) {
	saved, err := s.deps.Briefings.List(r.Context(), r.URL.Query().Get("client_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": saved})
}

func (s *Server) upsertSaved(w http.ResponseWriter, r *http.Request) {
	var req domain.SavedBriefing
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	saved, err := s.deps.Briefings.Save(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) deleteSaved(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := s.deps.Briefings.Delete(r.Context(), q.Get("client_id"), q.Get("link")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type errorBody struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, runguard.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStoreDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err to a status. Server errors are logged in full and reported generically.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("Request failed")
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
