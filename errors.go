package corrstream

import (
	"errors"
	"fmt"
)

// Common sentinel errors for the corrstream package.
var (
	// ErrClosed is returned when operations are attempted on a closed pipeline.
	ErrClosed = errors.New("pipeline is closed")

	// ErrParse is returned for malformed NDJSON lines.
	ErrParse = errors.New("malformed record line")

	// ErrUnknownRecordType is returned for records with an unrecognized type discriminant.
	ErrUnknownRecordType = errors.New("unknown record type")

	// ErrMissingRequiredField is returned for records missing a required field.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrSourceUnavailable is returned when the record source cannot be read.
	ErrSourceUnavailable = errors.New("record source unavailable")

	// ErrThresholdConfigInvalid is returned when a classifier configuration change is rejected.
	ErrThresholdConfigInvalid = errors.New("invalid threshold configuration")

	// ErrNotFound is returned when an insight id does not exist in the store.
	ErrNotFound = errors.New("insight not found")
)

// IngestErrorType categorizes per-record ingestion failures.
type IngestErrorType int

const (
	// IngestErrorTypeUnknown is an unclassified ingestion error.
	IngestErrorTypeUnknown IngestErrorType = iota
	// IngestErrorTypeParse indicates the line is not valid JSON.
	IngestErrorTypeParse
	// IngestErrorTypeUnknownType indicates an unrecognized type discriminant.
	IngestErrorTypeUnknownType
	// IngestErrorTypeMissingField indicates a required field is absent.
	IngestErrorTypeMissingField
)

// IngestError describes a per-record ingestion failure. These errors are
// always local to one record; they are counted and reported per cycle but
// never abort a batch.
type IngestError struct {
	Type  IngestErrorType
	Field string // set for IngestErrorTypeMissingField
	Line  int    // zero-based index within the cycle's batch
	Cause error
}

func (e *IngestError) Error() string {
	switch e.Type {
	case IngestErrorTypeParse:
		if e.Cause != nil {
			return fmt.Sprintf("line %d: malformed record: %v", e.Line, e.Cause)
		}
		return fmt.Sprintf("line %d: malformed record", e.Line)
	case IngestErrorTypeUnknownType:
		return fmt.Sprintf("line %d: unknown record type %q", e.Line, e.Field)
	case IngestErrorTypeMissingField:
		return fmt.Sprintf("line %d: missing required field %q", e.Line, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("line %d: ingest error: %v", e.Line, e.Cause)
	}
	return fmt.Sprintf("line %d: ingest error", e.Line)
}

func (e *IngestError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for IngestError.
func (e *IngestError) Is(target error) bool {
	switch e.Type {
	case IngestErrorTypeParse:
		return target == ErrParse
	case IngestErrorTypeUnknownType:
		return target == ErrUnknownRecordType
	case IngestErrorTypeMissingField:
		return target == ErrMissingRequiredField
	}
	return false
}

// SourceError describes a cycle-level failure reading the record source.
// It is surfaced to the presentation layer as degraded freshness, never as a
// hard failure; the poller retries on the next scheduled cycle.
type SourceError struct {
	Message string
	Path    string
	Cause   error
}

func (e *SourceError) Error() string {
	if e.Path != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s [%s]: %v", e.Message, e.Path, e.Cause)
		}
		return fmt.Sprintf("%s [%s]", e.Message, e.Path)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SourceError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for SourceError.
func (e *SourceError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// newSourceError creates a new SourceError.
func newSourceError(message, path string, cause error) *SourceError {
	return &SourceError{Message: message, Path: path, Cause: cause}
}
