package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error names exposed to clients in the envelope.
const (
	NameNotFound    = "NotFoundError"
	NameBadRequest  = "BadRequestError"
	NameForbidden   = "ForbiddenError"
	NameValidation  = "ValidationError"
	NameConflict    = "ConflictError"
	NameApplication = "ApplicationError"
)

// Error is a client-facing error. It is raised by the core and by collaborators and is
// rendered verbatim into the error envelope.
type Error struct {
	Name    string
	Message string
	Status  int
	Details map[string]interface{}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Is matches on name and status so errors.Is works against the constructors below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Name == t.Name && e.Status == t.Status
}

// NotFound returns a 404 NotFoundError. An empty message defaults to "Not Found".
func NotFound(message string) *Error {
	if message == "" {
		message = "Not Found"
	}
	return &Error{Name: NameNotFound, Message: message, Status: http.StatusNotFound}
}

// BadRequest returns a 400 BadRequestError.
func BadRequest(message string) *Error {
	return &Error{Name: NameBadRequest, Message: message, Status: http.StatusBadRequest}
}

// Forbidden returns a 403 ForbiddenError. An empty message defaults to "Forbidden".
func Forbidden(message string) *Error {
	if message == "" {
		message = "Forbidden"
	}
	return &Error{Name: NameForbidden, Message: message, Status: http.StatusForbidden}
}

// Validation returns a 400 ValidationError carrying structured details.
func Validation(message string, details map[string]interface{}) *Error {
	return &Error{Name: NameValidation, Message: message, Status: http.StatusBadRequest, Details: details}
}

// Conflict returns a 409 ConflictError.
func Conflict(message string) *Error {
	return &Error{Name: NameConflict, Message: message, Status: http.StatusConflict}
}

// As extracts a client-facing *Error from err, if there is one in its chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ErrorBody is the "error" member of the envelope.
type ErrorBody struct {
	Name    string                 `json:"name"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Details map[string]interface{} `json:"details"`
}

// ErrorResponse is the error envelope returned by every REST route.
type ErrorResponse struct {
	Data  interface{} `json:"data"`
	Error ErrorBody   `json:"error"`
}

// Envelope renders err as an error envelope. Errors that are not client-facing collapse
// into a 500 ApplicationError without leaking their message.
func Envelope(err error) (int, ErrorResponse) {
	e, ok := As(err)
	if !ok {
		e = &Error{Name: NameApplication, Message: "Internal Server Error", Status: http.StatusInternalServerError}
	}
	details := e.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	return e.Status, ErrorResponse{
		Data: nil,
		Error: ErrorBody{
			Name:    e.Name,
			Message: e.Message,
			Status:  e.Status,
			Details: details,
		},
	}
}
