package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/launchradar/launchradar/internal/cycle"
	"github.com/launchradar/launchradar/internal/metrics"
	"github.com/launchradar/launchradar/internal/store"
)

// sessionStore is the read/write session surface the ops listener and the
// engine share.
type sessionStore interface {
	cycle.SessionStore
	Recent(ctx context.Context, n int) ([]cycle.Snapshot, error)
}

// newOpsServer builds the read-only ops listener: health, metrics, and
// session polling.
func newOpsServer(addr string, sessions sessionStore, reg *metrics.Registry) *http.Server {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version})
	}).Methods(http.MethodGet)

	r.Handle("/metrics", reg.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/sessions", func(w http.ResponseWriter, req *http.Request) {
		snaps, err := sessions.Recent(req.Context(), 20)
		if err != nil {
			log.Error().Err(err).Msg("session list failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session list failed"})
			return
		}
		writeJSON(w, http.StatusOK, snaps)
	}).Methods(http.MethodGet)

	r.HandleFunc("/sessions/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := mux.Vars(req)["id"]
		snap, err := sessions.Get(req.Context(), id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
				return
			}
			log.Error().Err(err).Str("session", id).Msg("session lookup failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "session lookup failed"})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}).Methods(http.MethodGet)

	return &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("response encode failed")
	}
}
