package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/flores8/tyler/internal/config"
	"github.com/flores8/tyler/internal/ingress"
	"github.com/flores8/tyler/internal/observability"
	"github.com/google/uuid"
)

// runServe implements the serve command: load configuration, build the
// runtime, and expose Ingress over a minimal HTTP surface until an
// interrupt or terminate signal arrives.
func runServe(ctx context.Context, configPath string) error {
	slog.Info("starting tyler", "version", version, "commit", commit, "config", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	slog.Info("configuration loaded",
		"storage_backend", cfg.Storage.Backend,
		"agents", len(cfg.Agents),
		"default_agent", cfg.Router.DefaultAgent,
	)

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to build runtime: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			slog.Error("error during runtime shutdown", "error", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: newAPIHandler(rt.ingress),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("tyler listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	slog.Info("shutdown signal received, initiating graceful shutdown")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	slog.Info("tyler stopped gracefully")
	return nil
}

// apiHandler is the reference transport adapter: a JSON HTTP surface that
// only talks to internal/ingress, the same seam a Slack or CLI adapter
// would sit behind.
type apiHandler struct {
	mux *http.ServeMux
	ing *ingress.Ingress
}

func newAPIHandler(ing *ingress.Ingress) http.Handler {
	h := &apiHandler{mux: http.NewServeMux(), ing: ing}
	h.mux.HandleFunc("POST /v1/messages", h.handleSubmit)
	h.mux.HandleFunc("GET /v1/threads", h.handleListRecent)
	h.mux.HandleFunc("GET /v1/threads/{id}", h.handleGetThread)
	h.mux.HandleFunc("DELETE /v1/threads/{id}", h.handleDeleteThread)
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	return h
}

func (h *apiHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx := observability.WithRequestID(r.Context(), requestID)
	r = r.WithContext(ctx)
	w.Header().Set("X-Request-ID", requestID)

	start := time.Now()
	h.mux.ServeHTTP(w, r)
	slog.InfoContext(ctx, "request handled",
		"method", r.Method, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
}

func (h *apiHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type submitRequest struct {
	Message string       `json:"message"`
	Source  submitSource `json:"source"`
	Stream  bool         `json:"stream"`
}

type submitSource struct {
	Name       string         `json:"name"`
	ThreadID   string         `json:"thread_id"`
	Properties map[string]any `json:"properties"`
}

func (h *apiHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, errors.New("message must not be empty"))
		return
	}

	source := ingress.Source{
		Name:       req.Source.Name,
		ThreadID:   req.Source.ThreadID,
		Properties: req.Source.Properties,
	}

	if req.Stream {
		h.streamSubmit(w, r.Context(), req.Message, source)
		return
	}

	result, err := h.ing.Submit(r.Context(), req.Message, source, nil)
	if err != nil {
		writeIngressError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *apiHandler) streamSubmit(w http.ResponseWriter, ctx context.Context, message string, source ingress.Source) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	thread, events, err := h.ing.Stream(ctx, message, source, nil)
	if err != nil {
		writeIngressError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "event: thread\ndata: %s\n\n", mustMarshal(thread))
	flusher.Flush()

	for ev := range events {
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, mustMarshal(ev))
		flusher.Flush()
	}
}

func (h *apiHandler) handleGetThread(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	thread, err := h.ing.GetThread(r.Context(), id)
	if err != nil {
		writeIngressError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (h *apiHandler) handleListRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = parsed
	}
	threads, err := h.ing.ListRecent(r.Context(), limit)
	if err != nil {
		writeIngressError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

func (h *apiHandler) handleDeleteThread(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := h.ing.DeleteThread(r.Context(), id)
	if err != nil {
		writeIngressError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, fmt.Errorf("thread %q not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeIngressError(w http.ResponseWriter, err error) {
	if errors.Is(err, ingress.ErrAgentNotFound) {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeError(w, http.StatusInternalServerError, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{}`)
	}
	return data
}
