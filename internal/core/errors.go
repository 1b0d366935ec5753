package core

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes carried by AppError.
const (
	CodeUpstream      = "upstream_error"
	CodeMissingFields = "missing_fields"
	CodeEmptyInput    = "empty_input"
	CodeInvalidPeriod = "invalid_period"
	CodeNotFound      = "not_found"
	CodeDependency    = "dependency_error"
)

// Sentinel errors. Client errors wrap ErrClient so callers can classify them with errors.Is.
var (
	ErrClient          = errors.New("client error")
	ErrNoReceipts      = &AppError{Code: CodeEmptyInput, Message: "receipts array is required and must not be empty", Cause: ErrClient}
	ErrNoCategories    = &AppError{Code: CodeEmptyInput, Message: "categories array is required and must not be empty", Cause: ErrClient}
	ErrInvalidPeriod   = &AppError{Code: CodeInvalidPeriod, Message: "period must be one of all, month, quarter, year", Cause: ErrClient}
	ErrNothingToExport = &AppError{Code: CodeNotFound, Message: "No receipts found to export", Cause: ErrClient}
	ErrNotFound        = errors.New("not found")
)

// AppError represents application-specific errors.
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil && !errors.Is(e.Cause, ErrClient) {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// UpstreamError reports a payload flagged as failed by the producing workflow.
type UpstreamError struct {
	Details any
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: invalid receipt data received from workflow: %v", CodeUpstream, e.Details)
}

func (e *UpstreamError) Unwrap() error { return ErrClient }

// MissingFieldsError reports required fields absent from an ingested record.
type MissingFieldsError struct {
	Missing  []string
	Received []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("%s: %s", CodeMissingFields, strings.Join(e.Missing, ", "))
}

func (e *MissingFieldsError) Unwrap() error { return ErrClient }

// DependencyError wraps a failure of an external collaborator (store, model, broker).
type DependencyError struct {
	Dependency string
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Dependency, CodeDependency, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// NewDependencyError wraps err as a failure of the named dependency.
func NewDependencyError(dependency string, err error) error {
	if err == nil {
		return nil
	}
	return &DependencyError{Dependency: dependency, Err: err}
}

// NewClientError builds a client-classified AppError.
func NewClientError(code, message string) error {
	return &AppError{Code: code, Message: message, Cause: ErrClient}
}

// IsClientError reports whether err stems from invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrClient)
}

// IsDependencyError reports whether err stems from a failing collaborator.
func IsDependencyError(err error) bool {
	var de *DependencyError
	return errors.As(err, &de)
}

// Message returns the human-readable part of an AppError, or err.Error() otherwise.
func Message(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
