package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Ratio1/sheetsync_sdk_go/internal/logger"
)

type failConfig struct {
	rate float64
	code int
}

// requestLogger logs one line per request once the handler has run.
func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.String("action", c.Query("action")),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("request", fields...)
			return
		}
		log.Info("request", fields...)
	}
}

// injectFaults delays every request and fails a share of them. roll returns
// values in [0, 1).
func injectFaults(delay time.Duration, cfg failConfig, roll func() float64) gin.HandlerFunc {
	if roll == nil {
		roll = rand.Float64
	}
	return func(c *gin.Context) {
		if delay > 0 {
			time.Sleep(delay)
		}
		if cfg.rate > 0 && roll() < cfg.rate {
			status := cfg.code
			if status == 0 {
				status = http.StatusInternalServerError
			}
			c.String(status, "failure injected")
			c.Abort()
			return
		}
		c.Next()
	}
}

func parseFailConfig(raw string) (failConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return failConfig{}, nil
	}
	cfg := failConfig{code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return failConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "rate":
			rate, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return failConfig{}, fmt.Errorf("parse rate: %w", err)
			}
			if rate < 0 || rate > 1 {
				return failConfig{}, fmt.Errorf("rate %v outside [0,1]", rate)
			}
			cfg.rate = rate
		case "code":
			code, err := strconv.Atoi(val)
			if err != nil {
				return failConfig{}, fmt.Errorf("parse code: %w", err)
			}
			if code < 100 || code > 599 {
				return failConfig{}, fmt.Errorf("code %d is not an HTTP status", code)
			}
			cfg.code = code
		default:
			return failConfig{}, fmt.Errorf("unknown fail key %q", key)
		}
	}
	return cfg, nil
}
