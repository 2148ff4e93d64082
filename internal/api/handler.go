package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/metalens/metalens/internal/config"
	"github.com/metalens/metalens/internal/metastore"
	"github.com/metalens/metalens/internal/observability"
)

// Inspector is the slice of the extraction layer the API needs.
type Inspector interface {
	Analyze(ctx context.Context, req metastore.Request) (metastore.MetadataResult, error)
	Versions(ctx context.Context, req metastore.Request) ([]metastore.VersionInfo, error)
	PartitionData(ctx context.Context, req metastore.Request) (metastore.PartitionData, error)
}

type Dependencies struct {
	Logger    *slog.Logger
	Inspector Inspector
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Inspector == nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", "inspector is not configured", true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/analyze", func(w http.ResponseWriter, r *http.Request) {
		handleAnalyze(deps, w, r)
	})
	mux.HandleFunc("POST /v1/versions", func(w http.ResponseWriter, r *http.Request) {
		handleVersions(deps, w, r)
	})
	mux.HandleFunc("POST /v1/partitions", func(w http.ResponseWriter, r *http.Request) {
		handlePartitions(deps, w, r)
	})

	var handler http.Handler = mux
	handler = observability.MetricsMiddleware(handler)
	if deps.Logger != nil {
		handler = observability.LoggingMiddleware(deps.Logger)(handler)
	}
	handler = observability.TraceMiddleware(handler)
	return handler
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
