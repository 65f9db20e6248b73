package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidBatch         = errors.New("invalid batch")
	ErrOversizedDocument    = errors.New("document exceeds size limit after compression")
	ErrTransientExtraction  = errors.New("transient extraction failure")
	ErrPermanentExtraction  = errors.New("permanent extraction failure")
	ErrAllDocumentsFailed   = errors.New("all documents failed")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrReportNotFound       = errors.New("analysis report not found")
	ErrAssistantUnavailable = errors.New("profile assistant not configured")
	ErrEmptyQuestion        = errors.New("question must not be empty")
	ErrArchiveDisabled      = errors.New("report archive not enabled")
)

// ValidationError reports malformed batch input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid batch: %s", e.Reason)
	}
	return fmt.Sprintf("invalid batch: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidBatch }

// OversizedDocumentError reports a document whose compression floor is still above the limit.
type OversizedDocumentError struct {
	Filename string
	Size     int64
	Limit    int64
	Policy   OversizedPolicy
}

func (e *OversizedDocumentError) Error() string {
	return fmt.Sprintf("%s: %d bytes exceeds limit of %d bytes after compression (policy %s)",
		e.Filename, e.Size, e.Limit, e.Policy)
}

func (e *OversizedDocumentError) Is(target error) bool { return target == ErrOversizedDocument }

// TransientExtractionError wraps a retryable provider failure.
type TransientExtractionError struct {
	Attempts int
	Err      error
}

func (e *TransientExtractionError) Error() string {
	return fmt.Sprintf("transient extraction failure after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TransientExtractionError) Unwrap() error { return e.Err }

func (e *TransientExtractionError) Is(target error) bool { return target == ErrTransientExtraction }

// PermanentExtractionError wraps an unsupported or irrecoverably malformed document.
type PermanentExtractionError struct {
	Reason string
	Err    error
}

func (e *PermanentExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("permanent extraction failure: %s", e.Reason)
	}
	return fmt.Sprintf("permanent extraction failure: %s: %v", e.Reason, e.Err)
}

func (e *PermanentExtractionError) Unwrap() error { return e.Err }

func (e *PermanentExtractionError) Is(target error) bool { return target == ErrPermanentExtraction }

// DocumentFailure describes why one document in a batch was not used.
type DocumentFailure struct {
	DocumentID uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename"`
	Outcome    Outcome   `json:"outcome"`
	ErrorKind  ErrorKind `json:"error_kind"`
	Error      string    `json:"error"`
}

// AllDocumentsFailedError is the only batch-aborting extraction error.
type AllDocumentsFailedError struct {
	Failures []DocumentFailure
}

func (e *AllDocumentsFailedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s (%s): %s", f.Filename, f.Outcome, f.Error))
	}
	return fmt.Sprintf("all %d documents failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *AllDocumentsFailedError) Is(target error) bool { return target == ErrAllDocumentsFailed }

// ConfigurationError reports configuration that cannot be auto-corrected.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Key, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrInvalidConfiguration }
