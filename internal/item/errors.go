package item

import (
	"errors"

	"github.com/zombor/declutter/internal/scanning"
)

// ErrNotFound is returned when an item does not exist for the caller
var ErrNotFound = errors.New("item not found")

// Code is the caller-visible classification of a failed scan
type Code string

const (
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeLowConfidence Code = "LOW_CONFIDENCE"
	CodeScanFailed    Code = "SCAN_FAILED"
)

// ScanError is returned by the scan operations of Service
type ScanError struct {
	Code   Code
	Msg    string
	Fields map[string]string              // invalid input only
	Result *scanning.IdentificationResult // low confidence only, may be partial
	Err    error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
