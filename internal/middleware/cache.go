package middleware

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// CacheConfig represents cache configuration
type CacheConfig struct {
	TTL       time.Duration
	MaxSize   int64
	KeyPrefix string
	// Version scopes cache keys, typically to the current snapshot id, so a refresh
	// makes older entries unreachable without explicit invalidation.
	Version func(ctx context.Context) string
}

type cachedResponse struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// CacheMiddleware caches successful GET responses in Redis.
func CacheMiddleware(client *redis.Client, config *CacheConfig, logger *logrus.Logger) gin.HandlerFunc {
	if client == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		version := ""
		if config.Version != nil {
			version = config.Version(ctx)
		}
		if version == "" {
			// Nothing to scope the entry to yet.
			c.Next()
			return
		}

		cacheKey := generateCacheKey(c, config.KeyPrefix, version)

		if data, err := client.Get(ctx, cacheKey).Bytes(); err == nil {
			var response cachedResponse
			if err := json.Unmarshal(data, &response); err == nil {
				c.Header("X-Cache", "HIT")
				c.Data(response.StatusCode, response.ContentType, response.Body)
				c.Abort()
				return
			}
		}

		writer := &cacheWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Header("X-Cache", "MISS")

		c.Next()

		status := writer.Status()
		if status < 200 || status >= 300 || len(writer.body) == 0 {
			return
		}
		if config.MaxSize > 0 && int64(len(writer.body)) > config.MaxSize {
			logger.WithFields(logrus.Fields{
				"size":     len(writer.body),
				"max_size": config.MaxSize,
			}).Debug("Response too large to cache")
			return
		}

		data, err := json.Marshal(cachedResponse{
			StatusCode:  status,
			ContentType: writer.Header().Get("Content-Type"),
			Body:        writer.body,
		})
		if err != nil {
			return
		}

		ttl := config.TTL
		if ttl == 0 {
			ttl = time.Minute
		}
		if err := client.Set(ctx, cacheKey, data, ttl).Err(); err != nil {
			logger.WithError(err).WithField("cache_key", cacheKey).Warn("Failed to cache response")
		}
	}
}

// cacheWriter captures the response body as it is written.
type cacheWriter struct {
	gin.ResponseWriter
	body []byte
}

func (w *cacheWriter) Write(data []byte) (int, error) {
	w.body = append(w.body, data...)
	return w.ResponseWriter.Write(data)
}

func (w *cacheWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

func generateCacheKey(c *gin.Context, prefix, version string) string {
	hash := sha1.Sum([]byte(c.Request.URL.Path + "?" + c.Request.URL.RawQuery))
	return fmt.Sprintf("%s:%s:%x", prefix, version, hash)
}
