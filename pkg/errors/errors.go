// Package errors defines the gateway error taxonomy shared by services and
// transports. Services return GatewayError values; the HTTP layer translates
// codes into status codes and JSON envelopes.
package errors

import "net/http"

// Code identifies a class of failure that callers can act on.
type Code string

const (
	CodeBadRequest             Code = "bad_request"
	CodeUnauthenticated        Code = "unauthenticated"
	CodeForbidden              Code = "forbidden"
	CodeNotFound               Code = "not_found"
	CodeRateLimited            Code = "rate_limit_exceeded"
	CodeSecretStoreUnavailable Code = "secret_store_unavailable"
	CodeInternal               Code = "internal_error"
)

// GatewayError carries a machine-readable code plus a human description.
type GatewayError struct {
	Code        Code
	Description string
}

func (e GatewayError) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Description
}

// New builds a GatewayError with the given code and description.
func New(code Code, description string) GatewayError {
	return GatewayError{Code: code, Description: description}
}

// ToHTTPStatus maps an error code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeSecretStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
