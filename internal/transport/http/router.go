package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"empathy-assessment-service/internal/app"
	"empathy-assessment-service/internal/domain"
	"github.com/go-chi/chi/v5"
)

// NewRouter wires the operator API and the progress websocket. Assessments
// started over HTTP run in the background under runCtx.
func NewRouter(runCtx context.Context, service *app.AssessmentService) http.Handler {
	h := &assessmentHandler{service: service, runCtx: runCtx}
	ws := NewWSHandler(service)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Route("/assessments", func(r chi.Router) {
		r.Post("/", h.start)
		r.Get("/{id}", h.get)
		r.Delete("/{id}", h.cancel)
		r.Post("/{id}/resume", h.resume)
	})
	r.Get("/ws", ws.ServeWS)
	return r
}

type assessmentHandler struct {
	service *app.AssessmentService
	runCtx  context.Context
}

type startRequest struct {
	AgentID string `json:"agentId"`
}

type assessmentResponse struct {
	Session domain.Snapshot    `json:"session"`
	Report  domain.ScoreReport `json:"report"`
}

func (h *assessmentHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agentId is required")
		return
	}
	session, err := h.service.Start(r.Context(), req.AgentID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.runInBackground(session.ID())
	writeJSON(w, http.StatusAccepted, assessmentResponse{Session: session.Snapshot(), Report: session.Report()})
}

func (h *assessmentHandler) resume(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.service.Snapshot(id); err == nil {
		writeError(w, http.StatusConflict, "assessment is already registered")
		return
	}
	session, err := h.service.ResumeFromCheckpoint(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	h.runInBackground(session.ID())
	writeJSON(w, http.StatusAccepted, assessmentResponse{Session: session.Snapshot(), Report: session.Report()})
}

func (h *assessmentHandler) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := h.service.Lookup(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	var report domain.ScoreReport
	if snap.Report != nil {
		report = *snap.Report
	} else {
		report, _ = h.service.Report(id)
	}
	writeJSON(w, http.StatusOK, assessmentResponse{Session: snap, Report: report})
}

func (h *assessmentHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Cancel(id, r.URL.Query().Get("reason")); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	report, _ := h.service.Report(id)
	writeJSON(w, http.StatusOK, report)
}

func (h *assessmentHandler) runInBackground(id string) {
	go func() {
		if _, err := h.service.Run(h.runCtx, id); err != nil {
			log.Printf("assessment %s: run stopped: %v", id, err)
		}
	}()
}

type errorPayload struct {
	Message string `json:"message"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSessionClosed), errors.Is(err, domain.ErrInvalidSnapshot), errors.Is(err, domain.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptyItemBank), errors.Is(err, domain.ErrInvalidItem):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorPayload{Message: msg})
}
