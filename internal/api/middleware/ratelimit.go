// internal/api/middleware/ratelimit.go
package middleware

import (
	"net/http"

	"orders-service/internal/api/responses"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter limita o ritmo global de requisições de uma rota.
type RateLimiter struct {
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRateLimiter cria um limitador de rps requisições por segundo com rajada burst.
func NewRateLimiter(rps float64, burst int, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger,
	}
}

// Handler rejeita com 429 quando não há ficha disponível.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiter.Allow() {
			rl.logger.Warn("limite de requisições excedido",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("remote_addr", c.ClientIP()),
			)
			c.Header("Retry-After", "1")
			responses.Error(c, http.StatusTooManyRequests, "Muitas requisições, tente novamente em instantes")
			return
		}
		c.Next()
	}
}
