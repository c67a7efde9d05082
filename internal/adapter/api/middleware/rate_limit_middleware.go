package middleware

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"

	"jobmarket/internal/infrastructure/ratelimit"
	apperrors "jobmarket/pkg/errors"
	"jobmarket/pkg/logger"
	"jobmarket/pkg/response"
)

// RateLimit throttles action per session user, or per client IP when no
// user is known.
func RateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP()
			if uid := UserID(c); uid != 0 {
				key = strconv.FormatInt(uid, 10)
			}

			allowed, wait := limiter.Allow(key, action)
			if !allowed {
				retryAfter := int(math.Ceil(wait.Seconds()))
				logger.Warn("Rate limit hit for %s by %s, retry in %ds", action, key, retryAfter)
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return response.Error(c, apperrors.TooManyRequests("Too many requests, slow down"))
			}

			return next(c)
		}
	}
}
