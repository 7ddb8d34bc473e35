package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

// jsendResponse is the envelope of every API response: success carries
// data, fail carries a client-side message, error a server-side one.
type jsendResponse struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func success(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, jsendResponse{Status: statusSuccess, Data: data})
}

func fail(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, jsendResponse{Status: statusFail, Message: message, Data: data})
}

// failValidation reports per-field messages with 422, matching the
// Unprocessable Entity contract of the request boundary.
func failValidation(c echo.Context, fieldErrors map[string]string) error {
	return fail(c, http.StatusUnprocessableEntity, "Validation failed", map[string]any{
		"validation_errors": fieldErrors,
	})
}

func internalError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, jsendResponse{
		Status:  statusError,
		Message: message,
		Code:    http.StatusInternalServerError,
	})
}
