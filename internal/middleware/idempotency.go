package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyPrefix = "ridelog:idempotency:"
	idempotencyTTL    = 24 * time.Hour

	// claimTTL caps how long a crashed request can hold its key.
	claimTTL = time.Minute
)

// storedResponse is what a retry with the same key gets back.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
}

// bodyRecorder tees the handler's output so it can be stored after the fact.
type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// idempotencyStore keeps finished responses and in-flight claims in redis,
// scoped by method and path so one key cannot replay across endpoints.
type idempotencyStore struct {
	client *redis.Client
}

func (s idempotencyStore) responseKey(c *gin.Context, key string) string {
	return idempotencyPrefix + c.Request.Method + ":" + c.Request.URL.Path + ":" + key
}

func (s idempotencyStore) lookup(ctx context.Context, rkey string) (*storedResponse, error) {
	data, err := s.client.Get(ctx, rkey).Bytes()
	if err != nil {
		return nil, err
	}
	var resp storedResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// claim marks rkey as in flight. It reports false when another request
// already holds it.
func (s idempotencyStore) claim(ctx context.Context, rkey string) (bool, error) {
	return s.client.SetNX(ctx, rkey+":claim", 1, claimTTL).Result()
}

func (s idempotencyStore) release(ctx context.Context, rkey string) error {
	return s.client.Del(ctx, rkey+":claim").Err()
}

func (s idempotencyStore) record(ctx context.Context, rkey string, resp storedResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, rkey, data, idempotencyTTL).Err()
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key, so a driver app retrying "end trip" over a flaky
// connection does not get a spurious conflict for a trip that was saved.
// A retry that arrives while the first attempt is still running gets 409
// instead of running the handler a second time.
//
// Redis trouble never blocks a request; the middleware steps aside.
func IdempotencyMiddleware(redisClient *redis.Client) gin.HandlerFunc {
	store := idempotencyStore{client: redisClient}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		rkey := store.responseKey(c, key)
		log := logrus.WithFields(logrus.Fields{
			"component": "idempotency",
			"key":       key,
			"path":      c.Request.URL.Path,
		})

		stored, err := store.lookup(ctx, rkey)
		switch {
		case err == nil:
			log.Debug("replaying stored response")
			contentType := stored.ContentType
			if contentType == "" {
				contentType = "application/json"
			}
			c.Data(stored.Status, contentType, stored.Body)
			c.Abort()
			return
		case err != redis.Nil:
			log.WithError(err).Warn("idempotency lookup failed, serving request without it")
			c.Next()
			return
		}

		claimed, err := store.claim(ctx, rkey)
		if err != nil {
			log.WithError(err).Warn("idempotency claim failed, serving request without it")
			c.Next()
			return
		}
		if !claimed {
			log.Info("duplicate request while the first is in flight")
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error": "a request with this Idempotency-Key is still in progress",
			})
			return
		}
		defer func() {
			if err := store.release(context.WithoutCancel(ctx), rkey); err != nil {
				log.WithError(err).Warn("idempotency claim release failed")
			}
		}()

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Next()

		// 5xx means the work may not have happened; let the retry run it again.
		status := rec.Status()
		if status >= http.StatusInternalServerError {
			return
		}
		resp := storedResponse{
			Status:      status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.buf.Bytes(),
		}
		if err := store.record(context.WithoutCancel(ctx), rkey, resp); err != nil {
			log.WithError(err).Warn("idempotency store failed")
		}
	}
}
