package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	// ErrCodeSetup means the scripted browser could not be started. Fatal.
	ErrCodeSetup = "SETUP_FAILED"
	// ErrCodeFetch means one URL could not be retrieved. Never fatal.
	ErrCodeFetch = "FETCH_FAILED"
	// ErrCodeExtraction means one document could not be turned into a record.
	ErrCodeExtraction = "EXTRACTION_FAILED"
	// ErrCodeInvalidInput covers a missing base URL or an unreadable upload. Fatal.
	ErrCodeInvalidInput = "INVALID_INPUT"
	// ErrCodeEmptyResult is a warning: the run finished but kept nothing.
	ErrCodeEmptyResult = "EMPTY_RESULT"

	ErrCodeTimeout      = "SCRAPE_TIMEOUT"
	ErrCodeNavigation   = "NAVIGATION_FAILED"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeBusy         = "TOO_MANY_JOBS"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// Human-readable guidance attached to the two outcomes users most often hit.
const (
	SetupGuidance = "the scripted browser could not be started; make sure Chromium is installed " +
		"(packages chromium and chromium-driver, or set SHELFSCAN_BROWSER_BIN) or run without --browser"
	EmptyResultGuidance = "No products found. The site may require the 'Use Browser' option, " +
		"or the selectors may not match."
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// CodeOf returns the code of the first ScrapeError in err's chain, or
// ErrCodeInternal when there is none.
func CodeOf(err error) string {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// IsFatal reports whether err must stop a run: only setup and input failures do.
func IsFatal(err error) bool {
	switch CodeOf(err) {
	case ErrCodeSetup, ErrCodeInvalidInput:
		return true
	}
	return false
}

// DetailOf converts any error to an ErrorDetail.
func DetailOf(err error) *ErrorDetail {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.ToDetail()
	}
	return &ErrorDetail{Code: ErrCodeInternal, Message: err.Error()}
}
