package pipeline

import (
	"context"
	"errors"

	"github.com/MeKo-Tech/idextract/internal/recognizer"
	"github.com/MeKo-Tech/idextract/internal/regions"
	"github.com/MeKo-Tech/idextract/internal/utils"
)

// Error kinds surfaced by the pipeline.
var (
	ErrInvalidImage           = utils.ErrInvalidImage
	ErrRecognitionUnavailable = recognizer.ErrRecognitionUnavailable
	ErrEmptyRegion            = regions.ErrEmptyRegion
	ErrInternal               = errors.New("internal error")
)

// Pipeline stages named in StageError.
const (
	StageDecode    = "decode"
	StageNormalize = "normalize"
	StageRecognize = "recognize"
	StageRegions   = "regions"
)

// Stable failure codes carried in the result envelope.
const (
	CodeInvalidImage           = "invalid_image"
	CodeRecognitionUnavailable = "recognition_unavailable"
	CodeTimeout                = "timeout"
	CodeCanceled               = "canceled"
	CodePipelineFailure        = "pipeline_failure"
)

// StageError marks the pipeline stage a failure happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// ErrorCode maps an error to its envelope code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidImage):
		return CodeInvalidImage
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.Is(err, ErrRecognitionUnavailable):
		return CodeRecognitionUnavailable
	default:
		return CodePipelineFailure
	}
}
