package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"arena-timer/internal/domain"
	"arena-timer/internal/timerctl"
)

// Defaults for a connect request that omits port or path
const (
	DefaultConnectPort = 8765
	DefaultConnectPath = "/socket.io/"
)

// DefaultCommandTimeout bounds how long a handler waits for the run loop
const DefaultCommandTimeout = 10 * time.Second

// Controller is what the HTTP API needs from the run loop
type Controller interface {
	Connect(ctx context.Context, host string, port uint16, path string) error
	Disconnect(ctx context.Context) error
	Snapshot() Snapshot
}

// TimerView exposes the countdown to the status endpoint
type TimerView interface {
	State() timerctl.CountdownState
}

// APIConfig configures the HTTP API
type APIConfig struct {
	Controller Controller
	// Timer may be nil, which disables /api/status
	Timer TimerView
	// Gatherer may be nil, which disables /metrics
	Gatherer       prometheus.Gatherer
	CommandTimeout time.Duration
	Logger         logr.Logger
}

type api struct {
	ctrl    Controller
	timer   TimerView
	timeout time.Duration
	log     logr.Logger
}

type result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewRouter builds the status and control API
func NewRouter(cfg APIConfig) http.Handler {
	a := &api{
		ctrl:    cfg.Controller,
		timer:   cfg.Timer,
		timeout: cfg.CommandTimeout,
		log:     cfg.Logger,
	}
	if a.timeout <= 0 {
		a.timeout = DefaultCommandTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api/websocket", func(r chi.Router) {
		r.Get("/status", a.status)
		r.Post("/connect", a.connect)
		r.Post("/disconnect", a.disconnect)
	})

	if cfg.Timer != nil {
		r.Get("/api/status", a.timerStatus)
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (a *api) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.ctrl.Snapshot())
}

func (a *api) connect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, result{"error", "Malformed form body"})
		return
	}

	host := strings.TrimSpace(r.PostForm.Get("host"))
	if host == "" {
		writeJSON(w, http.StatusBadRequest, result{"error", "Host parameter required"})
		return
	}

	port := uint16(DefaultConnectPort)
	if raw := strings.TrimSpace(r.PostForm.Get("port")); raw != "" {
		p, err := strconv.ParseUint(raw, 10, 16)
		if err != nil || p == 0 {
			writeJSON(w, http.StatusBadRequest, result{"error", "Port must be between 1 and 65535"})
			return
		}
		port = uint16(p)
	}

	path := strings.TrimSpace(r.PostForm.Get("path"))
	if path == "" {
		path = DefaultConnectPath
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	a.log.Info("connect requested", "host", host, "port", port, "path", path)
	if err := a.ctrl.Connect(ctx, host, port, path); err != nil {
		a.log.Info("connect failed", "error", err.Error())
		code := http.StatusInternalServerError
		if errors.Is(err, domain.ErrEmptyHost) {
			code = http.StatusBadRequest
		}
		writeJSON(w, code, result{"error", "Failed to connect to WebSocket server: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result{"success", "Connected to WebSocket server"})
}

func (a *api) disconnect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	if err := a.ctrl.Disconnect(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, result{"error", err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result{"success", "Disconnected from WebSocket server"})
}

func (a *api) timerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.timer.State())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
