// Package handlers provides the HTTP API for running debate sessions.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alienxp03/sparring/internal/core"
	"github.com/alienxp03/sparring/internal/engine"
	"github.com/alienxp03/sparring/internal/persona"
	"github.com/alienxp03/sparring/internal/quota"
	"github.com/alienxp03/sparring/internal/safety"
	"github.com/alienxp03/sparring/internal/topic"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine   *engine.Engine
	gate     *safety.Gate
	topics   *topic.Registry
	personas *persona.Registry
}

// New creates a new Handler.
func New(eng *engine.Engine, gate *safety.Gate, topics *topic.Registry, personas *persona.Registry) *Handler {
	return &Handler{
		engine:   eng,
		gate:     gate,
		topics:   topics,
		personas: personas,
	}
}

// Routes builds the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.handleHealth)
		r.Get("/topics", h.handleListTopics)
		r.Get("/personas", h.handleListPersonas)
		r.Post("/safety/check", h.handleSafetyCheck)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.handleCreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.handleGetSession)
				r.Get("/turns", h.handleGetTurns)
				r.Post("/turns", h.handleSubmitTurn)
				r.Post("/end", h.handleEndSession)
			})
		})
	})

	return r
}

// requestLogger logs one line per request after it completes.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListTopics(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]any{"topics": h.topics.List()})
}

// personaView is the public shape of a persona. The system prompt is
// deliberately not exposed.
type personaView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Style string `json:"style,omitempty"`
}

func (h *Handler) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	all := h.personas.List()
	views := make([]personaView, 0, len(all))
	for _, p := range all {
		views = append(views, personaView{ID: p.ID, Name: p.Name, Style: p.Style})
	}
	h.json(w, http.StatusOK, map[string]any{"personas": views})
}

type safetyCheckRequest struct {
	Text string `json:"text"`
}

func (h *Handler) handleSafetyCheck(w http.ResponseWriter, r *http.Request) {
	var req safetyCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.json(w, http.StatusOK, h.gate.Check(req.Text))
}

type createSessionRequest struct {
	ParticipantID string `json:"participant_id"`
	TopicID       string `json:"topic_id"`
	Stance        string `json:"stance"`
	Difficulty    string `json:"difficulty"`
	PersonaID     string `json:"persona_id"`
	Group         string `json:"group"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := h.engine.StartSession(r.Context(), engine.StartParams{
		ParticipantID: req.ParticipantID,
		TopicID:       req.TopicID,
		Stance:        req.Stance,
		Difficulty:    req.Difficulty,
		PersonaID:     req.PersonaID,
		Group:         req.Group,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, http.StatusCreated, sess)
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.engine.GetSession(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, http.StatusOK, sess)
}

func (h *Handler) handleGetTurns(w http.ResponseWriter, r *http.Request) {
	turns, err := h.engine.GetTurns(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if turns == nil {
		turns = []*core.Turn{}
	}
	h.json(w, http.StatusOK, map[string]any{"turns": turns})
}

type turnRequest struct {
	Text string `json:"text"`
}

func (h *Handler) handleSubmitTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.engine.SubmitTurn(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, http.StatusOK, res)
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	eval, err := h.engine.EndSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]any{"evaluation": eval})
}

// writeError maps engine errors onto HTTP statuses. Unrecognized errors
// are logged and reported as a generic 500 so internals never leak.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var blocked *engine.BlockedError
	if errors.As(err, &blocked) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{
			"error":         blocked.Reason,
			"flagged_terms": blocked.FlaggedTerms,
		})
		return
	}

	switch {
	case errors.Is(err, engine.ErrSessionNotFound):
		h.jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrSessionEnded):
		h.jsonError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrSessionTooShort):
		h.jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, engine.ErrEmptyMessage),
		errors.Is(err, engine.ErrMessageTooLong),
		errors.Is(err, engine.ErrUnknownTopic),
		errors.Is(err, engine.ErrInvalidParams):
		h.jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, quota.ErrExceeded):
		h.jsonError(w, err.Error(), http.StatusTooManyRequests)
	default:
		slog.Error("request failed", "error", err)
		h.jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) json(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
