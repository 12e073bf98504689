package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeUpload     ErrorType = "upload"
	ErrorTypePoll       ErrorType = "poll"
	ErrorTypeJobFailed  ErrorType = "job_failed"
	ErrorTypeDownload   ErrorType = "download"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeIO         ErrorType = "io"
)

// Fixed user-facing messages.
const (
	MsgUnsupportedFile = "Only .pptx files are supported."
	MsgUploadFailed    = "Upload failed"
	MsgPollFailed      = "Failed to fetch job status"
	MsgDownloadFailed  = "Download failed"
)

// DomainError represents a domain-specific error with context.
// Message is the line shown to the user; Err carries the cause.
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func UploadError(message string, err error) *DomainError {
	return NewError(ErrorTypeUpload, message, err)
}

func PollError(message string, err error) *DomainError {
	return NewError(ErrorTypePoll, message, err)
}

// JobFailedError wraps a server-reported failure for callers that need an error
// value (CLI exit codes). The store never sees it.
func JobFailedError(message string) *DomainError {
	return NewError(ErrorTypeJobFailed, message, nil)
}

func DownloadError(message string, err error) *DomainError {
	return NewError(ErrorTypeDownload, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

// IsType reports whether err wraps a DomainError of the given type.
func IsType(err error, t ErrorType) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type == t
	}
	return false
}

// UserMessage returns the single line to show for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}
