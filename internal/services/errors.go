package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRetryableArtifact = errors.New("artifact not ready")
	ErrStructural        = errors.New("structural validation failed")
	ErrSemantic          = errors.New("semantic validation failed")
	ErrConfiguration     = errors.New("configuration error")
	ErrNotFound          = errors.New("not found")
	ErrTransient         = errors.New("transient failure")
)

// Error kinds reported by ErrorKind.
const (
	KindRetryable     = "retryable"
	KindStructural    = "structural"
	KindSemantic      = "semantic"
	KindNotFound      = "not_found"
	KindConfiguration = "configuration"
	KindTransient     = "transient"
)

// Exit codes returned by the CLI.
const (
	ExitOK          = 0
	ExitRecoverable = 1
	ExitStructural  = 2
	ExitSemantic    = 3
)

// ValidationError describes why a collaborator artifact was rejected. Message
// is always human readable; Rule names the violated rule when one applies.
type ValidationError struct {
	Phase   string
	Kind    string
	Message string
	Rule    string
	Err     error
}

func (e *ValidationError) Error() string {
	detail := buildDetail(e.Phase, "", e.Message)
	if e.Rule != "" {
		detail += " (rule: " + e.Rule + ")"
	}
	if e.Err != nil {
		return detail + ": " + e.Err.Error()
	}
	return detail
}

// ErrorKind implements the classifier contract used by ExitCode.
func (e *ValidationError) ErrorKind() string { return e.Kind }

// Unwrap exposes the kind marker and the underlying cause.
func (e *ValidationError) Unwrap() []error {
	errs := []error{markerForKind(e.Kind)}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewValidationError builds a ValidationError of the given kind.
func NewValidationError(phase, kind, message string) *ValidationError {
	return &ValidationError{Phase: phase, Kind: kind, Message: message}
}

// Structural builds a structural ValidationError.
func Structural(phase, message string, err error) *ValidationError {
	return &ValidationError{Phase: phase, Kind: KindStructural, Message: message, Err: err}
}

// Semantic builds a semantic ValidationError naming the violated rule.
func Semantic(phase, rule, message string) *ValidationError {
	return &ValidationError{Phase: phase, Kind: KindSemantic, Message: message, Rule: rule}
}

// Retryable builds a retryable artifact error.
func Retryable(phase, message string) *ValidationError {
	return &ValidationError{Phase: phase, Kind: KindRetryable, Message: message}
}

// ErrorClassifier allows errors to declare their classification.
type ErrorClassifier interface {
	ErrorKind() string
}

// Wrap builds an error message that includes phase context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, phase, operation, message string, err error) error {
	detail := buildDetail(phase, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind classifies err into one of the Kind constants. Unknown errors are
// transient.
func Kind(err error) string {
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	switch {
	case errors.Is(err, ErrStructural):
		return KindStructural
	case errors.Is(err, ErrSemantic):
		return KindSemantic
	case errors.Is(err, ErrRetryableArtifact):
		return KindRetryable
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindTransient
	}
}

// IsRetryable reports whether the collaborator may simply be asked again.
func IsRetryable(err error) bool {
	switch Kind(err) {
	case KindRetryable, KindNotFound:
		return true
	default:
		return false
	}
}

// ExitCode maps an error onto the CLI exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch Kind(err) {
	case KindStructural, KindNotFound:
		return ExitStructural
	case KindSemantic:
		return ExitSemantic
	default:
		return ExitRecoverable
	}
}

func markerForKind(kind string) error {
	switch kind {
	case KindRetryable:
		return ErrRetryableArtifact
	case KindStructural:
		return ErrStructural
	case KindSemantic:
		return ErrSemantic
	case KindNotFound:
		return ErrNotFound
	case KindConfiguration:
		return ErrConfiguration
	default:
		return ErrTransient
	}
}

func buildDetail(phase, operation, message string) string {
	parts := make([]string, 0, 3)
	if phase = strings.TrimSpace(phase); phase != "" {
		parts = append(parts, phase)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
