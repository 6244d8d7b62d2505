package response

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/confmeal/backend/pkg/apperr"
)

// Body is the standard API response envelope.
type Body struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	ErrorCode  string      `json:"error_code,omitempty"`
	Message    string      `json:"message,omitempty"`
	DebugID    string      `json:"debug_id,omitempty"`
	RedeemedAt *time.Time  `json:"redeemed_at,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// Error sends the response for an application error and returns the debug
// id so the caller can correlate it with server-side logs. Conflict errors
// carry the original redemption time in the envelope.
func Error(c *gin.Context, err error) string {
	ae := apperr.From(err)
	debugID := newDebugID()
	c.JSON(apperr.HTTPStatus(ae.Code), Body{
		Success:    false,
		ErrorCode:  string(ae.Code),
		Message:    ae.Message,
		DebugID:    debugID,
		RedeemedAt: ae.RedeemedAt,
	})
	return debugID
}

// Unauthorized sends 401 with error message.
func Unauthorized(c *gin.Context, msg string) {
	Error(c, apperr.Unauthorized(msg))
}

// Forbidden sends 403 with error message.
func Forbidden(c *gin.Context, msg string) {
	Error(c, apperr.Forbidden(msg))
}

// BadRequest sends 422 with error message (all input errors share the
// validation code).
func BadRequest(c *gin.Context, msg string) {
	Error(c, apperr.Validation(msg))
}

func newDebugID() string {
	short := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:9])
	return fmt.Sprintf("ERR_%d_%s", time.Now().UnixMilli(), short)
}
