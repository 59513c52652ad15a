package transport

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/paulebil/UniHostel/internal/entity"
	"github.com/paulebil/UniHostel/internal/transport/middleware"
)

// SuccessResponse представляет успешный ответ
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
}

// statusFor maps an error kind to its HTTP status
func statusFor(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}

	switch entity.KindOf(err) {
	case entity.KindValidation:
		return http.StatusBadRequest
	case entity.KindNotFound:
		return http.StatusNotFound
	case entity.KindCapacityExceeded, entity.KindConflict:
		return http.StatusConflict
	case entity.KindNotSettled:
		return http.StatusAccepted
	case entity.KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case entity.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		// internals stay in the log
		_ = c.Error(err)
		msg = "internal server error"
	}
	c.JSON(status, ErrorResponse{
		Success: false,
		Error:   msg,
		Kind:    entity.KindOf(err).String(),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Success: false, Error: msg, Kind: entity.KindValidation.String()})
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func principal(c *gin.Context) entity.Principal {
	p, _ := middleware.PrincipalFrom(c)
	return p
}
