package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
)

// ============================================================================
// HTTP: state feed, health check and a small control API
// ============================================================================
// The control API injects the same events as IPC; every request is answered
// with {status, message, data}.
// ============================================================================

type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, apiResponse{Status: "error", Message: message})
}

func respondSuccess(w http.ResponseWriter, message string, data any) {
	respondJSON(w, http.StatusOK, apiResponse{Status: "success", Message: message, Data: data})
}

const apiMaxBody = 64 * 1024

type controlAPI struct {
	events  chan<- Event
	timeout time.Duration
	logger  *slog.Logger
}

// newHTTPRouter wires /ws/state, /healthz and the /api routes.
func newHTTPRouter(ws *Server, events chan<- Event, logger *slog.Logger) *mux.Router {
	api := &controlAPI{events: events, timeout: time.Second, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	}).Methods("GET")
	ws.Register(r, "/ws/state")

	r.HandleFunc("/api/state", api.getState).Methods("GET")
	r.HandleFunc("/api/screen/{screen}", api.setScreen).Methods("POST")
	r.HandleFunc("/api/brightness/{value}", api.setBrightness).Methods("POST")
	r.HandleFunc("/api/haptic/{mode}", api.setHaptic).Methods("POST")
	r.HandleFunc("/api/events", api.postEvent).Methods("POST")
	return r
}

// submit queues ev without waiting for the daemon to reduce it.
func (a *controlAPI) submit(w http.ResponseWriter, ev Event, message string) {
	select {
	case a.events <- ev:
		respondSuccess(w, message, nil)
	default:
		respondError(w, http.StatusServiceUnavailable, "event queue full")
	}
}

func (a *controlAPI) getState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
	defer cancel()

	reply := make(chan StateSnapshot, 1)
	select {
	case a.events <- RequestStateSnapshot{Reply: reply}:
	case <-ctx.Done():
		respondError(w, http.StatusServiceUnavailable, "daemon busy")
		return
	}
	select {
	case snap := <-reply:
		respondSuccess(w, "state", snap)
	case <-ctx.Done():
		respondError(w, http.StatusGatewayTimeout, "snapshot timed out")
	}
}

func (a *controlAPI) setScreen(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["screen"]
	if _, err := parseScreen(name); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.submit(w, SetScreen{Screen: name}, "screen requested")
}

func (a *controlAPI) setBrightness(w http.ResponseWriter, r *http.Request) {
	v, err := strconv.Atoi(mux.Vars(r)["value"])
	if err != nil || v < 0 || v > 100 {
		respondError(w, http.StatusBadRequest, "brightness must be an integer 0-100")
		return
	}
	a.submit(w, SetBrightness{Brightness: v, Origin: "http"}, "brightness requested")
}

func (a *controlAPI) setHaptic(w http.ResponseWriter, r *http.Request) {
	mode := mux.Vars(r)["mode"]
	if _, ok := parseHapticMode(mode, false); !ok {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown haptic mode %q", mode))
		return
	}
	a.submit(w, SetHaptic{Mode: mode, Origin: "http"}, "haptic requested")
}

// postEvent accepts one IPC envelope as the request body.
func (a *controlAPI) postEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, apiMaxBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev, err := UnmarshalEvent(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("parse event: %v", err))
		return
	}
	a.logger.Debug("api event", "remote_addr", r.RemoteAddr, "event", fmt.Sprintf("%T", ev))
	a.submit(w, ev, "event queued")
}

// runHTTPServer serves handler on port and shuts down gracefully when ctx is
// canceled.
func runHTTPServer(ctx context.Context, port int, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("HTTP listening", "port", port)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
