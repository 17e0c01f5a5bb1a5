// Package errors provides the stage-tagged error taxonomy shared by the extraction
// and provisioning stages.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Stage Tags
// ==========================

// Stage identifies which half of the pipeline produced a failure. It is the only
// piece of error state that retry decisions consult.
type Stage string

const (
	StageExtraction   Stage = "extraction"
	StageProvisioning Stage = "provisioning"
)

// ErrorCode is the fine-grained failure classification, kept for logging and metrics.
type ErrorCode string

const (
	ErrCodeExtractionTransport       ErrorCode = "EXTRACTION_TRANSPORT"
	ErrCodeExtractionMalformedRecord ErrorCode = "EXTRACTION_MALFORMED_RECORD"
	ErrCodeExtractionIncomplete      ErrorCode = "EXTRACTION_INCOMPLETE"

	ErrCodeProvisioningTransport       ErrorCode = "PROVISIONING_TRANSPORT"
	ErrCodeProvisioningInvalidResponse ErrorCode = "PROVISIONING_INVALID_RESPONSE"
)

// Stage returns the stage a code belongs to.
func (c ErrorCode) Stage() Stage {
	switch c {
	case ErrCodeProvisioningTransport, ErrCodeProvisioningInvalidResponse:
		return StageProvisioning
	default:
		return StageExtraction
	}
}

// ==========================
// 2. StageError
// ==========================

// StageError is the single error type surfaced by both stages.
type StageError struct {
	Stage     Stage     `json:"stage"`
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Err error `json:"-"`
}

func (e *StageError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StageError[%s/%s]: %s: %s", e.Stage, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StageError[%s/%s]: %s", e.Stage, e.Code, e.Message)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is matches another *StageError by code, so the sentinels below work with errors.Is.
func (e *StageError) Is(target error) bool {
	t, ok := target.(*StageError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// ToErrorVariables returns a map suitable for job-failure variables.
func (e *StageError) ToErrorVariables() map[string]interface{} {
	return map[string]interface{}{
		"errorStage":   string(e.Stage),
		"errorCode":    string(e.Code),
		"errorMessage": e.Message,
		"errorDetails": e.Details,
	}
}

// Sentinels for errors.Is comparisons.
var (
	ErrExtractionTransport         = &StageError{Stage: StageExtraction, Code: ErrCodeExtractionTransport}
	ErrExtractionMalformedRecord   = &StageError{Stage: StageExtraction, Code: ErrCodeExtractionMalformedRecord}
	ErrExtractionIncomplete        = &StageError{Stage: StageExtraction, Code: ErrCodeExtractionIncomplete}
	ErrProvisioningTransport       = &StageError{Stage: StageProvisioning, Code: ErrCodeProvisioningTransport}
	ErrProvisioningInvalidResponse = &StageError{Stage: StageProvisioning, Code: ErrCodeProvisioningInvalidResponse}
)

// ==========================
// 3. Error Constructors
// ==========================

func newStageError(code ErrorCode, message, details string, cause error) *StageError {
	return &StageError{
		Stage:     code.Stage(),
		Code:      code,
		Message:   message,
		Details:   details,
		Err:       cause,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionTransportError covers connection failures, non-OK status and read errors.
func NewExtractionTransportError(err error) *StageError {
	return newStageError(ErrCodeExtractionTransport, "Property extraction request failed", errDetails(err), err)
}

// NewExtractionMalformedRecordError reports a record that failed structured parsing.
func NewExtractionMalformedRecordError(record string, err error) *StageError {
	return newStageError(ErrCodeExtractionMalformedRecord, "Malformed extraction record",
		fmt.Sprintf("record: %s, error: %s", truncate(record, 200), errDetails(err)), err)
}

// NewExtractionIncompleteError reports a stream that ended without a final record.
func NewExtractionIncompleteError(records int) *StageError {
	return newStageError(ErrCodeExtractionIncomplete, "Extraction stream ended without a final result",
		fmt.Sprintf("records: %d", records), nil)
}

// NewProvisioningTransportError covers connection failures and non-success status.
func NewProvisioningTransportError(err error) *StageError {
	return newStageError(ErrCodeProvisioningTransport, "Agent provisioning request failed", errDetails(err), err)
}

// NewProvisioningInvalidResponseError reports a response without an agent id and phone.
func NewProvisioningInvalidResponseError(details string) *StageError {
	return newStageError(ErrCodeProvisioningInvalidResponse, "Invalid response from agent provisioning", details, nil)
}

// ==========================
// 4. Helpers
// ==========================

// AsStageError extracts a *StageError from err.
func AsStageError(err error) (*StageError, bool) {
	var se *StageError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// StageOf returns the stage of err, or "" when err carries no stage.
func StageOf(err error) Stage {
	if se, ok := AsStageError(err); ok {
		return se.Stage
	}
	return ""
}

// CodeOf returns the code of err, or "" when err carries no code.
func CodeOf(err error) ErrorCode {
	if se, ok := AsStageError(err); ok {
		return se.Code
	}
	return ""
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
