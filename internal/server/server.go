package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"spacebot-echo-show/internal/config"
	"spacebot-echo-show/internal/turn"
	"spacebot-echo-show/internal/types"
	"spacebot-echo-show/internal/webhook"
)

const (
	notConfiguredSpeech = "Spacebot isn't configured yet. Please set the webhook address and try again."
	apologySpeech       = "Sorry, I couldn't reach Spacebot right now. Please try again."
	repromptSpeech      = "What would you like to ask Spacebot?"
	noAnswerSpeech      = "I don't have an answer for that right now."
)

// Turner runs one turn; *turn.Orchestrator implements it.
type Turner interface {
	HandleTurn(ctx context.Context, req turn.Request) (turn.Result, error)
}

type Server struct {
	router   *chi.Mux
	settings config.Settings
	turns    Turner
	logger   *zap.Logger
}

func NewServer(cfg config.Server, settings config.Settings, turns Turner, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{cfg.AllowedOrigin},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	s := &Server{
		router:   r,
		settings: settings,
		turns:    turns,
		logger:   logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Post("/api/turn", s.handleTurn)
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !s.settings.Configured() {
		status = "not_configured"
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// POST /api/turn
// Every decodable request gets a 200 with something to speak.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req types.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.RequestID) == "" {
		req.RequestID = r.Header.Get("X-Request-Id")
	}
	if strings.TrimSpace(req.RequestID) == "" {
		req.RequestID = uuid.NewString()
	}
	s.writeJSON(w, http.StatusOK, s.Respond(r.Context(), req))
}

// Respond maps one host request to the host response, absorbing failures.
func (s *Server) Respond(ctx context.Context, req types.TurnRequest) types.TurnResponse {
	log := s.logger.With(zap.String("request_id", req.RequestID))

	if !s.settings.Configured() {
		log.Warn("turn skipped", zap.Error(config.ErrNotConfigured))
		return speak(req, notConfiguredSpeech)
	}
	if strings.TrimSpace(req.Utterance) == "" {
		return speak(req, repromptSpeech)
	}

	ctx, cancel := context.WithTimeout(ctx, config.HostTurnBudget)
	defer cancel()
	res, err := s.turns.HandleTurn(ctx, turn.Request{
		AppID:     req.AppID,
		UserID:    req.UserID,
		DeviceID:  req.DeviceID,
		RequestID: req.RequestID,
		Utterance: req.Utterance,
	})
	if err != nil {
		fields := []zap.Field{zap.String("conversation_id", res.ConversationID), zap.Error(err)}
		var te *webhook.TransportError
		if errors.As(err, &te) {
			fields = append(fields, zap.String("op", te.Op), zap.Int("status", te.StatusCode))
		}
		log.Warn("turn failed", fields...)
		resp := speak(req, apologySpeech)
		resp.ConversationID = res.ConversationID
		return resp
	}

	speech := res.SpeechText
	if strings.TrimSpace(speech) == "" {
		speech = noAnswerSpeech
	}
	resp := types.TurnResponse{
		SpeechText:     speech,
		CardText:       speech,
		RequestID:      req.RequestID,
		ConversationID: res.ConversationID,
		TimedOut:       res.TimedOut,
	}
	if req.DeviceSupportsVisualRendering {
		resp.Directive = res.Directive
	}
	return resp
}

func speak(req types.TurnRequest, text string) types.TurnResponse {
	return types.TurnResponse{SpeechText: text, CardText: text, RequestID: req.RequestID}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, types.ErrorResponse{Error: msg})
}
