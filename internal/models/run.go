package models

import "time"

// AnalysisRun is one entry of the pipeline run log. A run is recorded for
// every request that reached the pipeline, cached or not.
type AnalysisRun struct {
	ID              int64         `json:"id"`
	CacheKey        string        `json:"cache_key"`
	Kind            Kind          `json:"kind"`
	Reference       string        `json:"reference"`
	TargetLanguage  string        `json:"target_language"`
	ContentSource   ContentSource `json:"content_source,omitempty"`
	SourceLanguage  string        `json:"source_language,omitempty"`
	SegmentCount    int           `json:"segment_count"`
	Translated      bool          `json:"translated"`
	Cached          bool          `json:"cached"`
	ElapsedMs       int64         `json:"elapsed_ms"`
	EnrichmentError *string       `json:"enrichment_error,omitempty"`
	Error           *string       `json:"error,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}
