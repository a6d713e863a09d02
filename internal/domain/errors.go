package domain

import (
	"errors"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrDependencyMissing = errors.New("required system dependency missing")
	ErrNameConflict      = errors.New("instance name already exists")
	ErrFilesystem        = errors.New("filesystem error")
	ErrDownload          = errors.New("installer download failed")
	ErrLaunch            = errors.New("session launch failed")
	ErrCatalog           = errors.New("catalog error")
	ErrTimeout           = errors.New("external command timed out")
	ErrNotFound          = errors.New("instance not found")
)

// ValidationError collects every failed check of a deploy request, in the
// order the checks ran.
type ValidationError struct {
	Messages []string
	// Fields maps a request field to the messages reported for it.
	Fields map[string][]string
	// Missing lists external executables that could not be found on PATH.
	Missing []string
}

func (e *ValidationError) Add(field, msg string) {
	e.Messages = append(e.Messages, msg)
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

func (e *ValidationError) Empty() bool {
	return len(e.Messages) == 0
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Unwrap() []error {
	if len(e.Missing) > 0 {
		return []error{ErrValidation, ErrDependencyMissing}
	}
	return []error{ErrValidation}
}
