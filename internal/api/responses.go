package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/resilix/resilix/pkg/errors"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// APIError represents an API error
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func requestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}

// SuccessResponse sends a successful response
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}

// FailureResponse sends an error response with the given status
func FailureResponse(c *gin.Context, status int, code, message string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
		RequestID: requestID(c),
		Timestamp: time.Now(),
	})
}

// AppErrorResponse maps an application error onto an HTTP response
func AppErrorResponse(c *gin.Context, err error) {
	status := errors.GetStatusCode(err)
	if status == 0 {
		status = http.StatusInternalServerError
	}
	FailureResponse(c, status, errors.GetCode(err), err.Error())
}

// NotFoundResponse sends a 404 response
func NotFoundResponse(c *gin.Context, message string) {
	FailureResponse(c, http.StatusNotFound, "NOT_FOUND", message)
}

// BadRequestResponse sends a 400 response
func BadRequestResponse(c *gin.Context, message string) {
	FailureResponse(c, http.StatusBadRequest, "BAD_REQUEST", message)
}
