package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// VerifySuccess is the purchase verification success body.
type VerifySuccess struct {
	Success         bool   `json:"success"`
	Message         string `json:"message,omitempty"`
	AlreadyActive   bool   `json:"already_active,omitempty"`
	DurationDays    int    `json:"duration_days,omitempty"`
	SubscriptionEnd string `json:"subscription_end,omitempty"`
	VerifiedByApple bool   `json:"verified_by_apple"`
}

// VerifyFailure is the purchase verification failure body. Logical failures
// are returned with HTTP 200; clients branch on the success flag, not on the
// transport status.
type VerifyFailure struct {
	Success        bool   `json:"success"`
	Error          string `json:"error"`
	ErrorCode      string `json:"error_code"`
	IsSandboxError bool   `json:"is_sandbox_error"`
	UserMessage    string `json:"user_message"`
}

// Success returns a success response
func Success(data interface{}) Response {
	return Response{
		Success: true,
		Message: "success",
		Data:    data,
	}
}

// Error returns an error response
func Error(message string) Response {
	return Response{
		Success: false,
		Message: message,
	}
}

// SuccessJSON sends a success JSON response
func SuccessJSON(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Success(data))
}

// ErrorJSON sends an error JSON response
func ErrorJSON(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Error(message))
}

// VerifyFailureJSON sends a structured verification failure with HTTP 200.
func VerifyFailureJSON(c *gin.Context, errorCode, errDetail, userMessage string, isSandbox bool) {
	c.JSON(http.StatusOK, VerifyFailure{
		Success:        false,
		Error:          errDetail,
		ErrorCode:      errorCode,
		IsSandboxError: isSandbox,
		UserMessage:    userMessage,
	})
}
