package server

import (
	"errors"
	"net/http"

	"soundvault/logger"
)

// apiError is a user-visible error carrying the HTTP status it maps to.
// Handlers raise these; writeError is the single translation point to the
// wire envelope.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	return e.message
}

func validationError(message string) *apiError {
	return &apiError{status: http.StatusBadRequest, message: message}
}

func authenticationError(message string) *apiError {
	return &apiError{status: http.StatusUnauthorized, message: message}
}

func forbiddenError(message string) *apiError {
	return &apiError{status: http.StatusForbidden, message: message}
}

func notFoundError(message string) *apiError {
	return &apiError{status: http.StatusNotFound, message: message}
}

func conflictError(message string) *apiError {
	return &apiError{status: http.StatusConflict, message: message}
}

// errorBody is the uniform error envelope.
type errorBody struct {
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

type errorResponse struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

// writeError translates any error into the uniform JSON error envelope.
// Errors outside the taxonomy become opaque 500s; internals never reach the
// response body.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *apiError
	if !errors.As(err, &apiErr) {
		logger.Error("internal error", logger.ErrorField(err))
		apiErr = &apiError{status: http.StatusInternalServerError, message: "Internal server error"}
	}

	writeJSON(w, apiErr.status, errorResponse{
		Success: false,
		Error:   errorBody{Message: apiErr.message, StatusCode: apiErr.status},
	})
}
