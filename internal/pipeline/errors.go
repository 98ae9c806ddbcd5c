package pipeline

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Analyze wraps exactly one of them,
// inside a *StageError.
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrTranslation       = errors.New("translation failed")
	ErrTranslationOrder  = errors.New("translation out of order")
	ErrEnrichment        = errors.New("enrichment failed")
	ErrInternal          = errors.New("internal error")
)

// Stage names the pipeline step an error came from.
type Stage string

const (
	StageRequest   Stage = "request"
	StageResolve   Stage = "resolve"
	StageLanguage  Stage = "language"
	StageTranslate Stage = "translate"
	StageEnrich    Stage = "enrich"
)

// StageError is a typed pipeline failure. errors.Is matches both its Kind
// and anything in its cause chain.
type StageError struct {
	Stage Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func stageErr(stage Stage, kind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}
