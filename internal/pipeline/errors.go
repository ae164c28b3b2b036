package pipeline

import (
	"errors"
	"fmt"

	"quill/internal/feed"
	"quill/pkg/llm"
)

// Stage names the pipeline step an error originated from. The values are
// part of the HTTP error contract.
type Stage string

const (
	StageFetchingPosts Stage = "fetchingPosts"
	StageOrganizing    Stage = "organizing"
	StageDrafting      Stage = "drafting"
	StageUnknown       Stage = "unknown"

	// StageDone labels successful runs in metrics only; it never appears
	// in an error payload.
	StageDone Stage = "done"
)

// ValidationError rejects a request before any stage runs.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// StageError tags an underlying failure with the stage it occurred in.
// Status carries the upstream HTTP status when one is available (zero
// otherwise) and Details any upstream diagnostic payload.
type StageError struct {
	Stage   Stage
	Status  int
	Details string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// wrapStage attaches stage and, when the cause is an upstream HTTP failure,
// its status code and response body.
func wrapStage(stage Stage, err error) error {
	se := &StageError{Stage: stage, Err: err}

	var upstream *feed.UpstreamError
	var api *llm.APIError
	switch {
	case errors.As(err, &upstream):
		se.Status = upstream.StatusCode
		se.Details = upstream.Body
	case errors.As(err, &api):
		se.Status = api.StatusCode
		se.Details = api.Body
	}
	return se
}
