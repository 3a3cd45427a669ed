package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carpool/internal/service"
)

// ErrorBody is the error part of a failed response.
type ErrorBody struct {
	Code      service.Kind `json:"code"`
	Message   string       `json:"message"`
	MessageAr string       `json:"message_ar"`
}

// Envelope wraps every response body.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// respondError sends a typed error with the matching HTTP status. The raw cause is
// attached to the gin context for logging and never sent to the client.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	e := service.AsError(err)
	c.JSON(mapErrorToHTTPStatus(e.Kind), Envelope{
		Success: false,
		Error: &ErrorBody{
			Code:      e.Kind,
			Message:   e.Message,
			MessageAr: e.MessageAr,
		},
	})
}

// respondJSON sends a successful response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, Envelope{Success: true, Data: data})
}

// mapErrorToHTTPStatus maps service error kinds to HTTP status codes.
func mapErrorToHTTPStatus(kind service.Kind) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindBadRequest:
		return http.StatusBadRequest
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindGone:
		return http.StatusGone
	case service.KindInvalidState:
		return http.StatusConflict
	case service.KindPolicyViolation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
