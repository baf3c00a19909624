// Package server provides the optional HTTP server for serve mode.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/savid/xumo/internal/config"
	"github.com/savid/xumo/internal/data"
	"github.com/sirupsen/logrus"
)

// Routes sets up all HTTP routes.
type Routes struct {
	log   logrus.FieldLogger
	cfg   *config.Config
	store *data.Store
}

// NewRoutes creates a new routes instance.
func NewRoutes(log logrus.FieldLogger, cfg *config.Config, store *data.Store) *Routes {
	return &Routes{
		log:   log.WithField("component", "routes"),
		cfg:   cfg,
		store: store,
	}
}

// Handler returns the main HTTP handler with all routes.
func (r *Routes) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/playlist.m3u", r.handlePlaylist)
	mux.HandleFunc("/epg.xml.gz", r.handleGuide)
	mux.HandleFunc("/health", r.handleHealth)

	return r.loggingMiddleware(mux)
}

func (r *Routes) handlePlaylist(w http.ResponseWriter, req *http.Request) {
	artifacts, ok := r.store.Get()
	if !ok {
		http.Error(w, "No playlist generated yet", http.StatusServiceUnavailable)

		return
	}

	w.Header().Set("Content-Type", "application/x-mpegurl")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(artifacts.Playlist); err != nil {
		r.log.WithError(err).Error("Failed to write playlist response")
	}
}

func (r *Routes) handleGuide(w http.ResponseWriter, req *http.Request) {
	artifacts, ok := r.store.Get()
	if !ok {
		http.Error(w, "No guide generated yet", http.StatusServiceUnavailable)

		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(artifacts.Guide); err != nil {
		r.log.WithError(err).Error("Failed to write guide response")
	}
}

func (r *Routes) handleHealth(w http.ResponseWriter, req *http.Request) {
	var (
		channels int
		programs int
		lastRun  string
	)

	if artifacts, ok := r.store.Get(); ok {
		channels = artifacts.ChannelCount
		programs = artifacts.ProgramCount
		lastRun = artifacts.GeneratedAt.UTC().Format(time.RFC3339)
	}

	status := struct {
		Status   string `json:"status"`
		HasData  bool   `json:"hasData"`
		Channels int    `json:"channels"`
		Programs int    `json:"programs"`
		LastRun  string `json:"lastRun"`
	}{
		Status:   "ok",
		HasData:  r.store.HasData(),
		Channels: channels,
		Programs: programs,
		LastRun:  lastRun,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(status); err != nil {
		r.log.WithError(err).Error("Failed to write health response")
	}
}

func (r *Routes) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.log.WithFields(logrus.Fields{
			"method": req.Method,
			"path":   req.URL.Path,
			"remote": req.RemoteAddr,
		}).Info("HTTP request")

		next.ServeHTTP(w, req)
	})
}
