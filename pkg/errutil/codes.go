package errutil

import "net/http"

// CoreStatus is the transport-agnostic error classification used across
// services. It maps onto HTTP at the edge.
type CoreStatus string

const (
	StatusBadRequest       CoreStatus = "BAD_REQUEST"
	StatusValidationFailed CoreStatus = "VALIDATION_FAILED"
	StatusNotFound         CoreStatus = "NOT_FOUND"
	StatusConflict         CoreStatus = "CONFLICT"
	StatusInternal         CoreStatus = "INTERNAL"
	StatusNotImplemented   CoreStatus = "NOT_IMPLEMENTED"
	StatusUnknown          CoreStatus = "UNKNOWN"
)

// HTTPCode converts the CoreStatus to its closest HTTP status code equivalent.
func (s CoreStatus) HTTPCode() int {
	switch s {
	case StatusBadRequest, StatusValidationFailed:
		return http.StatusBadRequest
	case StatusNotFound:
		return http.StatusNotFound
	case StatusConflict:
		return http.StatusConflict
	case StatusNotImplemented:
		return http.StatusNotImplemented
	case StatusInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// StatusOf extracts the CoreStatus from an error, defaulting to UNKNOWN for
// errors that did not originate from this package.
func StatusOf(err error) CoreStatus {
	if err == nil {
		return StatusUnknown
	}
	if be, ok := err.(BaseError); ok {
		return be.Code
	}
	return StatusUnknown
}
