package api

import (
	"errors"
	"net/http"

	"github.com/ericfitz/oauthreg/auth/registration"
	"github.com/ericfitz/oauthreg/internal/slogging"
	"github.com/gin-gonic/gin"
)

// RequestError represents an error that should be returned as an HTTP response
type RequestError struct {
	Status  int
	Code    string
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// InvalidIdentifierError creates a RequestError for malformed path identifiers
func InvalidIdentifierError(message string) *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Code: "invalid_id", Message: message}
}

// NotFoundError creates a RequestError for unknown resources
func NotFoundError(message string) *RequestError {
	return &RequestError{Status: http.StatusNotFound, Code: "not_found", Message: message}
}

// ProviderMisconfiguredError creates a RequestError for unusable provider definitions
func ProviderMisconfiguredError(message string) *RequestError {
	return &RequestError{Status: http.StatusInternalServerError, Code: "provider_misconfigured", Message: message}
}

// ServerError creates a RequestError that hides the underlying cause from clients
func ServerError(message string) *RequestError {
	return &RequestError{Status: http.StatusInternalServerError, Code: "server_error", Message: message}
}

// registrationRequestError maps resolver failures onto HTTP responses
func registrationRequestError(err error) *RequestError {
	var notFound *registration.ProviderNotFoundError
	var malformed *registration.MalformedConfigurationError
	switch {
	case errors.As(err, &notFound):
		return NotFoundError(notFound.Error())
	case errors.As(err, &malformed):
		return ProviderMisconfiguredError(malformed.Error())
	default:
		return ServerError("failed to resolve client registration")
	}
}

// HandleRequestError sends an appropriate HTTP error response
func HandleRequestError(c *gin.Context, err error) {
	logger := slogging.GetContextLogger(c)

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		logger.Error("Unhandled request error: %v", err)
		reqErr = ServerError("internal server error")
	} else if reqErr.Status >= http.StatusInternalServerError {
		logger.Error("Request failed: %s", reqErr.Message)
	}

	c.AbortWithStatusJSON(reqErr.Status, Error{
		Error:            reqErr.Code,
		ErrorDescription: reqErr.Message,
	})
}
