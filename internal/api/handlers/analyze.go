package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hoanghai1803/dokhae/internal/models"
	"github.com/hoanghai1803/dokhae/internal/pipeline"
)

// Analyzer runs and invalidates analyses.
type Analyzer interface {
	Analyze(ctx context.Context, req models.Request) (*pipeline.Result, error)
	Invalidate(ctx context.Context, req models.Request) error
}

// MaxAnalyzeBody caps the size of a POST /api/analyze body, raw text
// references included.
const MaxAnalyzeBody = 1 << 20

// analyzeMeta describes how an artifact was obtained.
type analyzeMeta struct {
	Cached          bool       `json:"cached"`
	Coalesced       bool       `json:"coalesced"`
	ComputedAt      time.Time  `json:"computed_at"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	ElapsedMs       int64      `json:"elapsed_ms"`
	EnrichmentError string     `json:"enrichment_error,omitempty"`
}

type analyzeResponse struct {
	Artifact *models.Artifact `json:"artifact"`
	Meta     analyzeMeta      `json:"meta"`
}

// Analyze handles POST /api/analyze. The body is a models.Request; the
// response carries the artifact and cache metadata.
func Analyze(analyzer Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		r.Body = http.MaxBytesReader(w, r.Body, MaxAnalyzeBody)
		var req models.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
					fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
				return
			}
			writeError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid JSON body")
			return
		}

		res, err := analyzer.Analyze(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				// Client went away; the computation carries on for others.
				slog.Info("analyze request abandoned", "reference", req.Reference, "error", ctx.Err())
				return
			}
			writePipelineError(w, err, req)
			return
		}

		meta := analyzeMeta{
			Cached:     res.Cached,
			Coalesced:  res.Shared,
			ComputedAt: res.ComputedAt,
			ElapsedMs:  res.Elapsed.Milliseconds(),
		}
		if !res.ExpiresAt.IsZero() {
			meta.ExpiresAt = &res.ExpiresAt
		}
		if res.EnrichmentErr != nil {
			meta.EnrichmentError = res.EnrichmentErr.Error()
		}

		writeJSON(w, http.StatusOK, analyzeResponse{Artifact: res.Artifact, Meta: meta})
	}
}

// InvalidateAnalysis handles DELETE /api/analyze. The request is given as
// query parameters reference, kind and target_language.
func InvalidateAnalysis(analyzer Analyzer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		req := models.Request{
			Reference:      q.Get("reference"),
			Kind:           models.Kind(q.Get("kind")),
			TargetLanguage: q.Get("target_language"),
		}

		if err := analyzer.Invalidate(r.Context(), req); err != nil {
			writePipelineError(w, err, req)
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
	}
}

// writePipelineError maps a pipeline error onto a status and error code.
func writePipelineError(w http.ResponseWriter, err error, req models.Request) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("analysis failed", "reference", req.Reference, "code", code, "error", err)
	} else {
		slog.Info("analysis rejected", "reference", req.Reference, "code", code, "error", err)
	}
	writeError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout
	case errors.Is(err, pipeline.ErrSourceUnavailable):
		return http.StatusNotFound, CodeSourceUnavailable
	case errors.Is(err, pipeline.ErrTranslation), errors.Is(err, pipeline.ErrTranslationOrder):
		return http.StatusBadGateway, CodeTranslationFailed
	}
	return http.StatusInternalServerError, CodeInternal
}
