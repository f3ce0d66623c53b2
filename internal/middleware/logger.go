package middleware

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RateLimitEntry tracks request count per IP
type RateLimitEntry struct {
	Count     int
	ResetTime time.Time
}

var (
	rateLimitMap   = make(map[string]*RateLimitEntry)
	rateLimitMutex sync.Mutex
)

// Logger middleware for request logging
func Logger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start)

		log.Printf(
			"%s | %3d | %13v | %15s | %-7s %s",
			time.Now().Format("2006/01/02 - 15:04:05"),
			c.Response().StatusCode(),
			duration,
			c.IP(),
			c.Method(),
			c.Path(),
		)

		return err
	}
}

// CORS middleware for cross-origin requests
func CORS() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Access-Control-Allow-Origin", "*")
		c.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
		c.Set("Access-Control-Max-Age", "86400")

		if c.Method() == "OPTIONS" {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}

// RateLimiter middleware for rate limiting (simple implementation)
func RateLimiter(maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()

		rateLimitMutex.Lock()

		entry, exists := rateLimitMap[ip]
		now := time.Now()

		if !exists || now.After(entry.ResetTime) {
			rateLimitMap[ip] = &RateLimitEntry{
				Count:     1,
				ResetTime: now.Add(window),
			}
			rateLimitMutex.Unlock()
			return c.Next()
		}

		if entry.Count >= maxRequests {
			rateLimitMutex.Unlock()
			remaining := int(entry.ResetTime.Sub(now).Seconds())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "Rate limit exceeded. Try again in " + strconv.Itoa(remaining) + " seconds",
			})
		}

		entry.Count++
		rateLimitMutex.Unlock()
		return c.Next()
	}
}
