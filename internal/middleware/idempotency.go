package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"carpool/internal/service"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour
	// A claim outlives any request so a crashed handler cannot block the key forever.
	idempotencyClaimTTL = 2 * time.Minute
)

// storedResponse is what a key resolves to: a pending claim while the first
// request runs, then its final response.
type storedResponse struct {
	Fingerprint string          `json:"fingerprint"`
	Pending     bool            `json:"pending,omitempty"`
	StatusCode  int             `json:"status_code,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

type capturingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware makes POSTs carrying an Idempotency-Key safe to retry. The
// first request claims the key; duplicates arriving while it runs get 409, later
// ones get the stored response. Reusing a key with a different body is rejected.
// Server errors release the key so the caller can retry.
func IdempotencyMiddleware(client redis.Cmdable) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(idempotencyHeader)
		if c.Request.Method != http.MethodPost || key == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, service.ErrInvalidRequest)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		storeKey := "idempotency:" + UserID(c) + ":" + c.Request.URL.Path + ":" + key
		fingerprint := fingerprintOf(body)

		claim, _ := json.Marshal(storedResponse{Fingerprint: fingerprint, Pending: true})
		claimed, err := client.SetNX(ctx, storeKey, claim, idempotencyClaimTTL).Result()
		if err != nil {
			// Redis is unavailable: serve the request without replay protection.
			c.Next()
			return
		}

		if !claimed {
			replay(c, client, storeKey, fingerprint)
			return
		}

		w := &capturingWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		if status := w.Status(); status >= http.StatusInternalServerError {
			client.Del(context.WithoutCancel(ctx), storeKey)
			return
		}
		final, _ := json.Marshal(storedResponse{
			Fingerprint: fingerprint,
			StatusCode:  w.Status(),
			Body:        w.body.Bytes(),
		})
		client.Set(context.WithoutCancel(ctx), storeKey, final, idempotencyTTL)
	}
}

func replay(c *gin.Context, client redis.Cmdable, storeKey, fingerprint string) {
	data, err := client.Get(c.Request.Context(), storeKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// The claim expired between SETNX and GET; treat as still running.
			abortWithError(c, http.StatusConflict, service.ErrRequestInFlight)
			return
		}
		c.Next()
		return
	}

	var stored storedResponse
	if err := json.Unmarshal(data, &stored); err != nil {
		c.Next()
		return
	}

	switch {
	case stored.Fingerprint != fingerprint:
		abortWithError(c, http.StatusUnprocessableEntity, service.ErrIdempotencyKeyReused)
	case stored.Pending:
		abortWithError(c, http.StatusConflict, service.ErrRequestInFlight)
	default:
		c.Header("Idempotent-Replayed", "true")
		c.Data(stored.StatusCode, "application/json; charset=utf-8", stored.Body)
		c.Abort()
	}
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
