package webui

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"reportqa/internal/engine"
	"reportqa/internal/runner"
)

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer        string                 `json:"answer"`
	RelevantPages []*int                 `json:"relevant_pages"`
	Passages      []engine.SourcePassage `json:"passages,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		s.logger.Warn("write json", zap.Error(err))
	}
}

func (s *Server) handleAPIStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.Status())
}

func (s *Server) handleAPIAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required"})
		return
	}
	res, err := s.session.AnswerOne(r.Context(), req.Question)
	switch {
	case errors.Is(err, runner.ErrEngineNotReady):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case err != nil:
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
	default:
		pages := res.SourcePages
		if pages == nil {
			pages = []*int{}
		}
		s.writeJSON(w, http.StatusOK, askResponse{Answer: res.Text, RelevantPages: pages, Passages: res.Passages})
	}
}
