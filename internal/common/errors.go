package common

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/expense-reconciler/constants"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
)

// Ingestion failures. Every IngestFailure wraps exactly one of these.
var (
	ErrUnsupportedMediaType    = errors.New("unsupported media type")
	ErrExtractionFailed        = errors.New("extraction failed")
	ErrNoTextExtracted         = errors.New("no text extracted")
	ErrNoTransactionRecognized = errors.New("no transaction recognized")
	ErrMalformedArchiveEntry   = errors.New("malformed archive entry")
)

var reasonSentinels = map[constants.FailureReason]error{
	constants.ReasonUnsupportedMediaType:    ErrUnsupportedMediaType,
	constants.ReasonExtractionFailed:        ErrExtractionFailed,
	constants.ReasonNoTextExtracted:         ErrNoTextExtracted,
	constants.ReasonNoTransactionRecognized: ErrNoTransactionRecognized,
	constants.ReasonMalformedArchiveEntry:   ErrMalformedArchiveEntry,
}

// IngestFailure is the diagnostic returned when an artifact yields no candidate.
type IngestFailure struct {
	Reason     constants.FailureReason `json:"reason"`
	Stage      constants.Stage         `json:"stage"`
	OriginName string                  `json:"origin_name,omitempty"`
	Message    string                  `json:"message,omitempty"`
	Cause      error                   `json:"-"`
}

// NewIngestFailure builds a failure; message is optional detail for callers.
func NewIngestFailure(reason constants.FailureReason, stage constants.Stage, origin, message string, cause error) *IngestFailure {
	return &IngestFailure{Reason: reason, Stage: stage, OriginName: origin, Message: message, Cause: cause}
}

func (e *IngestFailure) Error() string {
	msg := fmt.Sprintf("%s at %s", e.Reason, e.Stage)
	if e.OriginName != "" {
		msg += fmt.Sprintf(" (%s)", e.OriginName)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is matches the sentinel for the failure's reason.
func (e *IngestFailure) Is(target error) bool {
	s, ok := reasonSentinels[e.Reason]
	return ok && s == target
}

func (e *IngestFailure) Unwrap() error {
	return e.Cause
}

// AsIngestFailure extracts an IngestFailure from err's chain.
func AsIngestFailure(err error) (*IngestFailure, bool) {
	var f *IngestFailure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
