// Package errors provides structured error handling for the auth service.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Credential errors
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodeInvalidSignature Code = "INVALID_SIGNATURE"
	CodeEmailMismatch    Code = "EMAIL_MISMATCH"

	// Validity window errors
	CodeInvalidState Code = "INVALID_STATE"
	CodeExpired      Code = "EXPIRED"

	// Upstream errors
	CodeProvider        Code = "PROVIDER"
	CodeDeserialization Code = "DESERIALIZATION"

	// Input and storage errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeWalletConflict  Code = "WALLET_CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthenticated, CodeInvalidSignature:
		return http.StatusUnauthorized
	case CodeEmailMismatch:
		return http.StatusForbidden
	case CodeInvalidState, CodeInvalidArgument, CodeDeserialization:
		return http.StatusBadRequest
	case CodeExpired:
		return http.StatusGone
	case CodeProvider:
		return http.StatusBadGateway
	case CodeNotFound:
		return http.StatusNotFound
	case CodeWalletConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Reason is the fallback user-facing text for a code.
func (c Code) Reason() string {
	switch c {
	case CodeUnauthenticated:
		return "not signed in"
	case CodeInvalidSignature:
		return "signature does not match address"
	case CodeEmailMismatch:
		return "email does not match account"
	case CodeInvalidState:
		return "invalid or reused state"
	case CodeExpired:
		return "link expired"
	case CodeProvider:
		return "provider unavailable"
	case CodeDeserialization:
		return "unexpected provider response"
	case CodeInvalidArgument:
		return "invalid request"
	case CodeNotFound:
		return "not found"
	case CodeWalletConflict:
		return "wallet linked to another account"
	default:
		return "internal error"
	}
}
