package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/metalens/metalens/internal/metastore"
)

func handleAnalyze(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(deps, w, r)
	if !ok {
		return
	}
	result, err := deps.Inspector.Analyze(r.Context(), req)
	if err != nil {
		writeAnalyzeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func handleVersions(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(deps, w, r)
	if !ok {
		return
	}
	versions, err := deps.Inspector.Versions(r.Context(), req)
	if err != nil {
		writeAnalyzeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func handlePartitions(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(deps, w, r)
	if !ok {
		return
	}
	partitions, err := deps.Inspector.PartitionData(r.Context(), req)
	if err != nil {
		writeAnalyzeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, partitions)
}

func decodeRequest(deps Dependencies, w http.ResponseWriter, r *http.Request) (metastore.Request, bool) {
	if deps.Inspector == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ANALYZE_NOT_CONFIGURED", "inspector dependency is not configured", false, nil)
		return metastore.Request{}, false
	}
	var req metastore.Request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid request body", false, map[string]any{"details": err.Error()})
		return metastore.Request{}, false
	}
	if strings.TrimSpace(req.Location) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "LOCATION_REQUIRED", "location is required", false, nil)
		return metastore.Request{}, false
	}
	return req, true
}

func writeAnalyzeError(ctx context.Context, w http.ResponseWriter, err error) {
	var analyzeErr *metastore.Error
	extra := map[string]any{}
	if errors.As(err, &analyzeErr) {
		extra["format"] = string(analyzeErr.Format)
	}
	switch {
	case errors.Is(err, metastore.ErrNotFound):
		writeError(ctx, w, http.StatusNotFound, "NOT_FOUND", err.Error(), false, extra)
	case errors.Is(err, metastore.ErrNoFilesFound):
		writeError(ctx, w, http.StatusNotFound, "NO_FILES_FOUND", err.Error(), false, extra)
	case errors.Is(err, metastore.ErrMalformedMetadata):
		writeError(ctx, w, http.StatusUnprocessableEntity, "MALFORMED_METADATA", err.Error(), false, extra)
	case errors.Is(err, metastore.ErrStorageUnavailable):
		writeError(ctx, w, http.StatusBadGateway, "STORAGE_UNAVAILABLE", err.Error(), true, extra)
	default:
		writeError(ctx, w, http.StatusInternalServerError, "ANALYZE_FAILED", err.Error(), false, extra)
	}
}
