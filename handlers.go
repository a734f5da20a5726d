package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type errorResponse struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
	Required  int64  `json:"required,omitempty"`
	Available int64  `json:"available,omitempty"`
}

type CoinsRequest struct {
	PlayerID string `json:"playerId"`
	Amount   int64  `json:"amount"`
}

type CoinsResponse struct {
	OK       bool   `json:"ok"`
	PlayerID string `json:"playerId"`
	Coins    int64  `json:"coins"`
}

type BoostActivateRequest struct {
	PlayerID        string    `json:"playerId"`
	Type            BoostType `json:"type"`
	Multiplier      float64   `json:"multiplier"`
	DurationSeconds int64     `json:"durationSeconds"`
}

type BoostsResponse struct {
	ActiveBoosts      []ActiveBoost `json:"activeBoosts"`
	CurrentMultiplier float64       `json:"currentMultiplier"`
}

type server struct {
	engine     *Engine
	db         *sql.DB
	board      leaderboardReader
	violations violationReader
	logger     *slog.Logger
	maxBody    int64
}

func newRouter(s *server, identity *Identity, gateway *Gateway, serviceKey string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.healthHandler)

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware)
		r.Get("/game/state", s.gameStateHandler)
		r.Post("/game/click", s.clickHandler)
		r.Get("/game/boosts", s.boostsHandler)
		r.Get("/game/events", s.energyEventsHandler)
		r.Get("/game/leaderboard", s.leaderboardHandler)
		r.Get("/ws", gateway.ServeHTTP)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireServiceKey(serviceKey))
		r.Post("/economy/deduct", s.deductHandler)
		r.Post("/economy/add", s.addHandler)
		r.Post("/game/boost/activate", s.activateBoostHandler)
		r.Get("/economy/violations", s.violationsHandler)
	})

	return r
}

func (s *server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{OK: false, Error: "database unavailable"})
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *server) gameStateHandler(w http.ResponseWriter, r *http.Request) {
	playerID, _ := playerIDFrom(r.Context())
	state, err := s.engine.GameState(r.Context(), playerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *server) clickHandler(w http.ResponseWriter, r *http.Request) {
	playerID, _ := playerIDFrom(r.Context())
	var req ClickRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, invalidInput("invalid_body", "invalid request body"))
		return
	}
	req.PlayerID = playerID

	result, err := s.engine.ProcessClickBatch(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) boostsHandler(w http.ResponseWriter, r *http.Request) {
	playerID, _ := playerIDFrom(r.Context())
	boosts, err := s.engine.ActiveBoosts(r.Context(), playerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, BoostsResponse{
		ActiveBoosts:      boosts,
		CurrentMultiplier: EffectiveMultiplier(boosts),
	})
}

func (s *server) deductHandler(w http.ResponseWriter, r *http.Request) {
	var req CoinsRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, invalidInput("invalid_body", "invalid request body"))
		return
	}
	remaining, err := s.engine.DeductCoins(r.Context(), req.PlayerID, req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CoinsResponse{OK: true, PlayerID: req.PlayerID, Coins: remaining})
}

func (s *server) addHandler(w http.ResponseWriter, r *http.Request) {
	var req CoinsRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, invalidInput("invalid_body", "invalid request body"))
		return
	}
	total, err := s.engine.AddCoins(r.Context(), req.PlayerID, req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CoinsResponse{OK: true, PlayerID: req.PlayerID, Coins: total})
}

func (s *server) activateBoostHandler(w http.ResponseWriter, r *http.Request) {
	var req BoostActivateRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, invalidInput("invalid_body", "invalid request body"))
		return
	}
	boost, err := s.engine.ActivateBoost(r.Context(), req.PlayerID, req.Type, req.Multiplier, req.DurationSeconds)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, boost)
}

func (s *server) decode(r *http.Request, target any) error {
	body := io.LimitReader(r.Body, s.maxBody)
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	resp := errorResponse{OK: false, Error: "internal error"}

	var econ *EconomyError
	if errors.As(err, &econ) {
		resp.Error = string(econ.Kind)
		resp.Reason = econ.Reason
		resp.Message = econ.Message
		resp.Required = econ.Required
		resp.Available = econ.Available
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "request_id", chimw.GetReqID(r.Context()), "error", err)
		resp.Message = ""
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
