// Package response holds small JSON-body helpers shared by the
// orchestrator and worker HTTP surfaces. Unlike a generic envelope, this
// domain's external interface (spec.md §6) dictates real HTTP status codes
// per endpoint, so the helpers here just keep error bodies consistent
// instead of wrapping every response in a status-0 envelope.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON shape returned for any non-2xx response.
type ErrorBody struct {
	Error string `json:"error"`
}

// Error writes {"error": message} with the given HTTP status.
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorBody{Error: message})
}

// BadRequest is a 400 with the given message.
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

// NotFound is a 404 with the given message.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message)
}

// Conflict is a 409 with the given message.
func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

// ServerError is a 500 with the given message.
func ServerError(c *gin.Context, message string) {
	if message == "" {
		message = "internal server error"
	}
	Error(c, http.StatusInternalServerError, message)
}
