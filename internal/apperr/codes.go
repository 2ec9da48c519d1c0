// Package apperr is the error taxonomy of the order and listing lifecycle.
// Every error a lifecycle operation returns carries one of these codes.
package apperr

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeSelfPurchase      Code = "SELF_PURCHASE"
	CodeAlreadySold       Code = "ALREADY_SOLD"
	CodeCurrentlyReserved Code = "CURRENTLY_RESERVED"
	CodeNotActive         Code = "NOT_ACTIVE"
	CodeNotPending        Code = "NOT_PENDING"
	CodeImmutable         Code = "IMMUTABLE"
	CodeConflict          Code = "CONFLICT"

	// CodeInternal covers store and transport failures outside the taxonomy.
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus maps a code to the status the HTTP boundary responds with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeSelfPurchase, CodeNotActive, CodeNotPending, CodeImmutable:
		return http.StatusBadRequest
	case CodeAlreadySold, CodeCurrentlyReserved, CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
