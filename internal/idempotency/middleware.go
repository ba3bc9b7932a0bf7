package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	coreerrors "github.com/vellum-cms/vellum/internal/core/errors"
)

// HeaderKey is the request header carrying the client-chosen key.
const HeaderKey = "Idempotency-Key"

// HeaderReplayed marks responses served from the store.
const HeaderReplayed = "Idempotent-Replayed"

type recorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *recorder) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// Middleware makes requests carrying an Idempotency-Key replayable. Keys are scoped to
// method and path. Server errors release the key; when the store is unreachable the
// request proceeds without protection.
func Middleware(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := c.GetHeader(HeaderKey)
		if clientKey == "" {
			c.Next()
			return
		}

		sum := sha256.Sum256([]byte(c.Request.Method + " " + c.Request.URL.Path + " " + clientKey))
		key := hex.EncodeToString(sum[:])
		ctx := c.Request.Context()

		stored, err := store.Begin(ctx, key)
		switch {
		case errors.Is(err, ErrInProgress):
			status, body := coreerrors.Envelope(coreerrors.Conflict("A request with this Idempotency-Key is in progress"))
			c.AbortWithStatusJSON(status, body)
			return
		case err != nil:
			slog.Warn("[Redis] Idempotency store unavailable", "error", err)
			c.Next()
			return
		case stored != nil:
			c.Header(HeaderReplayed, "true")
			c.Data(stored.Status, stored.ContentType, stored.Body)
			c.Abort()
			return
		}

		rec := &recorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		if rec.Status() >= http.StatusInternalServerError {
			if err := store.Release(ctx, key); err != nil {
				slog.Warn("[Redis] Failed to release idempotency key", "error", err)
			}
			return
		}
		err = store.Complete(ctx, key, &Response{
			Status:      rec.Status(),
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		})
		if err != nil {
			slog.Warn("[Redis] Failed to store idempotent response", "error", err)
		}
	}
}
