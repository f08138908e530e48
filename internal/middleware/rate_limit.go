package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "rl:mutation:"

// MutationRateLimit caps mutating requests per account per minute using a
// Redis fixed window. It must be registered on the route so the accountId
// param is resolved. It fails open when Redis is unavailable.
func MutationRateLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cache == nil || maxPerMin <= 0 {
			return c.Next()
		}
		subject := c.Params("accountId")
		if subject == "" {
			subject = c.IP()
		}

		window := time.Now().UTC().Truncate(time.Minute).Unix()
		key := rateLimitPrefix + subject + ":" + strconv.FormatInt(window, 10)

		ctx, cancel := context.WithTimeout(c.UserContext(), cacheTimeout)
		defer cancel()

		pipe := cache.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, time.Minute)
		if _, err := pipe.Exec(ctx); err != nil {
			logger.Warn("rate limit check failed", slog.String("subject", subject), slog.Any("error", err))
			return c.Next()
		}

		count := incr.Val()
		c.Set("X-RateLimit-Limit", strconv.Itoa(maxPerMin))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(max(int64(maxPerMin)-count, 0), 10))
		if count > int64(maxPerMin) {
			return fiber.NewError(http.StatusTooManyRequests, "too many requests for this account, try again later")
		}
		return c.Next()
	}
}
