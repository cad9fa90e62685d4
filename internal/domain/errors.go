package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by adapters and use cases. Match with errors.Is.
var (
	ErrExternalService = errors.New("external service error")
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
)

// Stage names a step of per-post processing.
type Stage string

const (
	StageParse    Stage = "parse"
	StageClassify Stage = "classify"
	StageExtract  Stage = "extract"
	StagePersist  Stage = "persist"
)

// StageError reports which stage failed for a single post.
type StageError struct {
	Stage Stage
	URI   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s post %s: %v", e.Stage, e.URI, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
