package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorType int

const (
	// ErrNotFound: no reference or target could be located. The worker
	// aborts silently and a later lookup retries from scratch.
	ErrNotFound ErrorType = iota
	// ErrProvider: the source provider was unreachable or replied with
	// garbage. Treated as NotFound for the affected call.
	ErrProvider
	// ErrNetwork: a download or external call failed in transit.
	ErrNetwork
	// ErrStructuralMismatch: aligned/translated output did not match the
	// expected structure. The unit of work is discarded, never fatal.
	ErrStructuralMismatch
	// ErrAlignment: the external aligner failed for one variant pair.
	ErrAlignment
	// ErrTranslation: the translation engine failed beyond its fallbacks.
	ErrTranslation
	// ErrStore: the artifact store rejected a write.
	ErrStore
	ErrConfig
	ErrUnknown
)

// PipelineError is the typed error carried through the acquisition pipeline.
type PipelineError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *PipelineError {
	return &PipelineError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func WrapError(err error, errorType ErrorType, message string) *PipelineError {
	return &PipelineError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   err,
	}
}

func (e *PipelineError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *PipelineError) Unwrap() error {
	return e.Cause
}

func (e *PipelineError) WithContext(key string, value any) *PipelineError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrNotFound:
		return "NotFound"
	case ErrProvider:
		return "Provider"
	case ErrNetwork:
		return "Network"
	case ErrStructuralMismatch:
		return "StructuralMismatch"
	case ErrAlignment:
		return "Alignment"
	case ErrTranslation:
		return "Translation"
	case ErrStore:
		return "Store"
	case ErrConfig:
		return "Config"
	default:
		return "Unknown"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var pipeErr *PipelineError
	if errors.As(err, &pipeErr) {
		return pipeErr.Type == errorType
	}
	return false
}
