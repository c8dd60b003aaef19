package pipeline

import (
	"errors"
	"fmt"

	"github.com/dogfriendly/venue-cli/internal/model"
	"github.com/dogfriendly/venue-cli/internal/store"
)

// StageError wraps a stage failure with its classification so the job
// record can show the error class alongside the message.
type StageError struct {
	Stage model.Stage
	Kind  model.ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func externalErr(stage model.Stage, err error) *StageError {
	return &StageError{Stage: stage, Kind: model.ErrorKindExternalCall, Err: err}
}

func malformedErr(stage model.Stage, err error) *StageError {
	return &StageError{Stage: stage, Kind: model.ErrorKindMalformedResponse, Err: err}
}

func validationErr(stage model.Stage, err error) *StageError {
	return &StageError{Stage: stage, Kind: model.ErrorKindValidation, Err: err}
}

// classify extracts the error kind from err. Bare errors from store
// conflicts map to the conflict kind; anything unclassified is treated as
// an external call failure.
func classify(err error) model.ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, store.ErrConflict) {
		return model.ErrorKindConflict
	}
	return model.ErrorKindExternalCall
}
