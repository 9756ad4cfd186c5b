package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"meatshop/internal/domain"
	"meatshop/internal/service"
)

const actorKey = "actor"

// requestLogger пишет одну строку на запрос через общий логгер
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"ip", c.ClientIP(),
		}
		if actor, ok := actorFrom(c); ok {
			args = append(args, "user_id", actor.UserID)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.Error("http request", args...)
			return
		}
		s.logger.Info("http request", args...)
	}
}

// cors: Allow-Credentials только при явно заданном origin
func (s *Server) cors() gin.HandlerFunc {
	credentials := s.clientURL != "*"
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", s.clientURL)
		if credentials {
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Add("Vary", "Origin")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// authenticate требует заголовок Authorization: Bearer <jwt>
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			fail(c, http.StatusUnauthorized, "No token, authorization denied", nil)
			return
		}
		actor, err := s.auth.Verify(strings.TrimSpace(token))
		if err != nil {
			fail(c, http.StatusUnauthorized, "Token is not valid", nil)
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// requireCapability ставится после authenticate
func (s *Server) requireCapability(capability service.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := actorFrom(c)
		if err := service.Authorize(actor, capability); err != nil {
			s.respondError(c, err, "")
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) (domain.Actor, bool) {
	v, exists := c.Get(actorKey)
	if !exists {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}
