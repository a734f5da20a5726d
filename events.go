package main

import (
	"encoding/json"
	"net/http"
	"time"
)

type energyEvent struct {
	Energy     int64  `json:"energy"`
	MaxEnergy  int64  `json:"maxEnergy"`
	ServerTime string `json:"serverTime"`
}

// energyEventsHandler streams cached energy over server-sent events for
// clients that cannot hold a socket open. An event is written only when the
// value changed since the last one.
func (s *server) energyEventsHandler(w http.ResponseWriter, r *http.Request) {
	playerID, _ := playerIDFrom(r.Context())
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	lastSent := int64(-1)
	sendEnergy := func() bool {
		reading, ok := s.engine.ReadCachedEnergy(playerID)
		if !ok || reading.Energy == lastSent {
			return true
		}
		payload, err := json.Marshal(energyEvent{
			Energy:     reading.Energy,
			MaxEnergy:  reading.MaxEnergy,
			ServerTime: time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			return false
		}
		if _, err := w.Write([]byte("event: energy\n")); err != nil {
			return false
		}
		if _, err := w.Write([]byte("data: ")); err != nil {
			return false
		}
		if _, err := w.Write(payload); err != nil {
			return false
		}
		if _, err := w.Write([]byte("\n\n")); err != nil {
			return false
		}
		flusher.Flush()
		lastSent = reading.Energy
		return true
	}

	if !sendEnergy() {
		return
	}

	ticker := time.NewTicker(s.engine.cfg.EnergyPushInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !sendEnergy() {
				return
			}
		}
	}
}
