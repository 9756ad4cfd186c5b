package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"meatshop/internal/repository"
	"meatshop/internal/service"
)

// envelope общий формат всех ответов API
type envelope struct {
	Success bool                 `json:"success"`
	Message string               `json:"message,omitempty"`
	Data    any                  `json:"data,omitempty"`
	Errors  []service.FieldError `json:"errors,omitempty"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string, fields []service.FieldError) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Message: message, Errors: fields})
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotEnoughStock):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError переводит ошибку сервиса в ответ; детали внутренних ошибок только в лог
func (s *Server) respondError(c *gin.Context, err error, notFound string) {
	status := mapErrorToStatus(err)

	var verr *service.ValidationError
	var serr *service.InsufficientStockError
	switch {
	case errors.As(err, &verr):
		fail(c, status, "Validation failed", verr.Fields)
	case errors.As(err, &serr):
		fail(c, status, serr.Error(), nil)
	case status == http.StatusNotFound:
		fail(c, status, notFound, nil)
	case status == http.StatusForbidden:
		fail(c, status, "Access denied", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		fail(c, status, "Invalid credentials", nil)
	case status == http.StatusUnauthorized:
		fail(c, status, "Not authorized", nil)
	case status == http.StatusConflict:
		fail(c, status, "User already exists with this email", nil)
	case status == http.StatusInternalServerError:
		s.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		fail(c, status, "Internal server error", nil)
	default:
		fail(c, status, detail(err), nil)
	}
}

// detail текст ошибки без префикса sentinel-ошибки, с заглавной буквы
func detail(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	if msg == "" {
		return msg
	}
	b := []byte(msg)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
