package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCorpusUnavailable  = errors.New("corpus unavailable")
	ErrArticleFetch       = errors.New("article fetch failed")
	ErrSynthesis          = errors.New("synthesis failed")
	ErrDelivery           = errors.New("delivery failed")
	ErrNoRelevantContent  = errors.New("no relevant content")
	ErrInvalidModelOutput = fmt.Errorf("%w: invalid model output", ErrSynthesis)
	ErrEmptySnapshot      = errors.New("news snapshot is empty")
	ErrInvalidRequest     = errors.New("invalid request")
)

// StageError tags a fatal error with the pipeline stage it came from.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err unless it already carries a stage.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// FailedStage returns the stage recorded in err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
