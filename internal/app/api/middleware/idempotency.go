package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tarotware/paywall/pkg/response"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
	idempotencyPrefix = "idem:"
)

type cachedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

type captureWriter struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

// shouldCache reports whether a response may be replayed for this key.
// Failure envelopes stay uncached: a cancelled or failed purchase must
// not pin its verdict, a genuine retry has to reach the store again.
func shouldCache(status int, body []byte) bool {
	if status >= http.StatusInternalServerError {
		return false
	}
	var envelope struct {
		Code *response.APIResponseCode `json:"code"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Code != nil && *envelope.Code != response.APIResponseCodeOK {
		return false
	}
	return true
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response for a repeated
// mutating request carrying the same Idempotency-Key. Purchase retries
// after a lost response must not start a second purchase. With no Redis
// configured the middleware is a pass-through.
func IdempotencyMiddleware(rdb *redis.Client, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		redisKey := idempotencyPrefix + c.FullPath() + ":" + key

		if raw, err := rdb.Get(ctx, redisKey).Bytes(); err == nil {
			var cached cachedResponse
			if json.Unmarshal(raw, &cached) == nil {
				c.Header("X-Idempotent-Replay", "true")
				c.Data(cached.Status, "application/json", cached.Body)
				c.Abort()
				return
			}
		} else if err != redis.Nil {
			log.Warnw("idempotency lookup failed, serving without replay", "err", err)
		}

		cw := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = cw
		c.Next()

		if !shouldCache(c.Writer.Status(), cw.buf.Bytes()) {
			return
		}
		raw, err := json.Marshal(cachedResponse{Status: c.Writer.Status(), Body: cw.buf.Bytes()})
		if err != nil {
			return
		}
		storeCtx, cancelStore := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancelStore()
		if err := rdb.Set(storeCtx, redisKey, raw, idempotencyTTL).Err(); err != nil {
			log.Warnw("failed to store idempotent response", "err", err)
		}
	}
}
