package pipeline

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures. Fatal kinds abort the run; the
// file-local ones are recorded per file while the run continues.
type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrContainerRead
	ErrNoSubtitlesFound
	ErrInvalidSourceFormat
	ErrTranslationFailed
	ErrMerge
	ErrContainerWrite
)

func (k ErrorKind) String() string {
	switch k {
	case ErrContainerRead:
		return "ContainerRead"
	case ErrNoSubtitlesFound:
		return "NoSubtitlesFound"
	case ErrInvalidSourceFormat:
		return "InvalidSourceFormat"
	case ErrTranslationFailed:
		return "TranslationFailed"
	case ErrMerge:
		return "Merge"
	case ErrContainerWrite:
		return "ContainerWrite"
	default:
		return "Unknown"
	}
}

// PipelineError is the typed error carried across stage boundaries.
type PipelineError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func NewError(kind ErrorKind, format string, args ...interface{}) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

func WrapError(cause error, kind ErrorKind, format string, args ...interface{}) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is a PipelineError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
