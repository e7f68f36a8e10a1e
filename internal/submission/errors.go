// internal/submission/errors.go
// The single typed error the HTTP boundary translates into a response.
// Anything else escaping the pipeline is a collaborator failure and becomes
// a generic 500 with the detail logged server-side only.

package submission

import "net/http"

// Error carries an HTTP-style status, a user-facing message and, for
// validation failures, the per-field error map plus the partially sanitized
// data so callers can re-render the form.
type Error struct {
	Status      int
	Message     string
	FieldErrors map[string]string
	Data        map[string]interface{}
}

func (e *Error) Error() string {
	return e.Message
}

func newError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

func notFoundError(message string) *Error {
	return newError(http.StatusNotFound, message)
}

func forbiddenError(message string) *Error {
	return newError(http.StatusForbidden, message)
}

func badRequestError(message string) *Error {
	return newError(http.StatusBadRequest, message)
}

func tooManyRequestsError() *Error {
	return newError(http.StatusTooManyRequests, "Too many submissions. Please try again later.")
}

func validationError(fieldErrors map[string]string, data map[string]interface{}) *Error {
	return &Error{
		Status:      http.StatusUnprocessableEntity,
		Message:     "Please correct the errors below.",
		FieldErrors: fieldErrors,
		Data:        data,
	}
}

func internalError() *Error {
	return newError(http.StatusInternalServerError, "Something went wrong. Please try again.")
}
