package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SuccessResponse sends a 200 response with the given payload
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// CreatedResponse sends a 201 response with the given payload
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    data,
	})
}

// ErrorResponse sends an error response with the given status and message
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"message": message,
		},
	})
}

// AppErrorResponse sends an error response from an AppError
func AppErrorResponse(c *gin.Context, err *AppError) {
	body := gin.H{
		"code":    err.Code,
		"message": err.Message,
	}
	if len(err.Fields) > 0 {
		body["fields"] = err.Fields
	}
	c.JSON(err.Status, gin.H{
		"success": false,
		"error":   body,
	})
}

// HandleError maps any error to an API response, treating non-AppErrors as
// internal failures with the given fallback message.
func HandleError(c *gin.Context, err error, fallback string) {
	if appErr, ok := err.(*AppError); ok {
		AppErrorResponse(c, appErr)
		return
	}
	ErrorResponse(c, http.StatusInternalServerError, fallback)
}
