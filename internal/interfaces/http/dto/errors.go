package dto

import "net/http"

// Error codes returned in the error envelope
// Format: ERR_<CATEGORY>_<DESCRIPTION>
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation = "ERR_VALIDATION"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"

	ErrCodeNotFound = "ERR_NOT_FOUND"
	ErrCodeConflict = "ERR_CONFLICT"

	// ErrCodeInvalidState is used when an operation is invalid for the current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeLedgerInconsistent is used when stored rows violate a ledger invariant
	ErrCodeLedgerInconsistent = "ERR_LEDGER_INCONSISTENT"
	// ErrCodeUpstream is used when a notification channel or archive fails
	ErrCodeUpstream = "ERR_UPSTREAM"

	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation: http.StatusBadRequest,
	ErrCodeBadRequest: http.StatusBadRequest,

	ErrCodeNotFound: http.StatusNotFound,
	// A conflict that survived the ledger's retries; the client may retry
	ErrCodeConflict: http.StatusConflict,

	ErrCodeInvalidState:       http.StatusUnprocessableEntity,
	ErrCodeLedgerInconsistent: http.StatusInternalServerError,
	ErrCodeUpstream:           http.StatusBadGateway,

	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainErrorCodes maps shared.DomainError codes to API error codes
var domainErrorCodes = map[string]string{
	"VALIDATION_ERROR":       ErrCodeValidation,
	"NOT_FOUND":              ErrCodeNotFound,
	"CONFLICT":               ErrCodeConflict,
	"INVALID_STATE":          ErrCodeInvalidState,
	"CONSISTENCY_ERROR":      ErrCodeLedgerInconsistent,
	"EXTERNAL_ADAPTER_ERROR": ErrCodeUpstream,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format or unknown are returned as-is.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := domainErrorCodes[code]; ok {
		return apiCode
	}
	return code
}
