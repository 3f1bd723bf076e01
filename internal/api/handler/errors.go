package handler

import (
	"net/http"

	"github.com/mcoot/ablakos-go/internal/api/apierr"
)

// Re-export from apierr for convenience
type APIError = apierr.APIError
type ErrorResponse = apierr.ErrorResponse

// Re-export error codes
const (
	CodeInvalidRequest      = apierr.CodeInvalidRequest
	CodeUnauthorized        = apierr.CodeUnauthorized
	CodeForbidden           = apierr.CodeForbidden
	CodePlayerNotFound      = apierr.CodePlayerNotFound
	CodeGameNotFound        = apierr.CodeGameNotFound
	CodeGameNotActive       = apierr.CodeGameNotActive
	CodeGameNotCompleted    = apierr.CodeGameNotCompleted
	CodeInsufficientPlayers = apierr.CodeInsufficientPlayers
	CodeDuplicatePlayers    = apierr.CodeDuplicatePlayers
	CodeIncompleteRound     = apierr.CodeIncompleteRound
	CodeUnknownRoundPlayer  = apierr.CodeUnknownRoundPlayer
	CodeUsernameExists      = apierr.CodeUsernameExists
	CodeInvalidCredentials  = apierr.CodeInvalidCredentials
	CodeInternalError       = apierr.CodeInternalError
)

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return apierr.NewInvalidRequestError(message)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError() error {
	return apierr.NewUnauthorizedError()
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) error {
	return apierr.NewForbiddenError(message)
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return apierr.NewInternalError()
}
