package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotentReplayedHeader  = "Idempotent-Replayed"
	idempotencyKeyPrefix      = "credit-engine:idempotency:"
	defaultIdempotencyLockTTL = 2 * time.Minute
	maxIdempotencyKeyLength   = 255
	maxIdempotentBodyBytes    = 1 << 20
	idempotencyStatePending   = "pending"
	idempotencyStateCompleted = "completed"
)

// IdempotencyStore is the subset of the Redis client the middleware needs.
type IdempotencyStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ IdempotencyStore = (*redis.Client)(nil)

type idempotencyRecord struct {
	State       string `json:"state"`
	RequestHash string `json:"requestHash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// The first request holds a pending record for lockTTL while it runs, which
// must exceed the longest time a handler may run. Its response is kept for ttl
// unless it was a server error. Keys running in this process are also tracked
// locally, so a duplicate is refused even if the pending record expired.
// A nil store disables the middleware.
func Idempotency(store IdempotencyStore, ttl, lockTTL time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if lockTTL <= 0 {
		lockTTL = defaultIdempotencyLockTTL
	}
	logger = logger.With("component", "Idempotency")
	var running sync.Map

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLength {
				writeJSONError(w, http.StatusBadRequest, "Idempotency-Key is too long")
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdempotentBodyBytes))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					writeJSONError(w, http.StatusRequestEntityTooLarge, "Request body too large")
					return
				}
				writeJSONError(w, http.StatusBadRequest, "Failed to read request body")
				return
			}
			_ = r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			ctx := r.Context()
			redisKey := idempotencyKeyPrefix + key
			requestHash := hashRequest(r, body)

			if _, busy := running.LoadOrStore(redisKey, struct{}{}); busy {
				writeJSONError(w, http.StatusConflict, "Request with this Idempotency-Key is still in progress")
				return
			}
			defer running.Delete(redisKey)

			pending, _ := json.Marshal(idempotencyRecord{State: idempotencyStatePending, RequestHash: requestHash})
			acquired, err := store.SetNX(ctx, redisKey, pending, lockTTL).Result()
			if err != nil {
				logger.ErrorContext(ctx, "Idempotency store unavailable", "key", key, slog.Any("error", err))
				writeJSONError(w, http.StatusServiceUnavailable, "Idempotency store unavailable")
				return
			}
			if !acquired {
				replayStored(ctx, w, store, redisKey, requestHash, logger)
				return
			}

			var captured bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&captured)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			// The lock must outlive a cancelled client request.
			storeCtx := context.WithoutCancel(ctx)
			if status >= http.StatusInternalServerError {
				if err := store.Del(storeCtx, redisKey).Err(); err != nil {
					logger.WarnContext(ctx, "Failed to release idempotency lock", "key", key, slog.Any("error", err))
				}
				return
			}

			completed, _ := json.Marshal(idempotencyRecord{
				State:       idempotencyStateCompleted,
				RequestHash: requestHash,
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        captured.Bytes(),
			})
			if err := store.Set(storeCtx, redisKey, completed, ttl).Err(); err != nil {
				logger.WarnContext(ctx, "Failed to store idempotent response", "key", key, slog.Any("error", err))
			}
		})
	}
}

func replayStored(ctx context.Context, w http.ResponseWriter, store IdempotencyStore, redisKey, requestHash string, logger *slog.Logger) {
	raw, err := store.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// Lock expired between SETNX and GET.
		writeJSONError(w, http.StatusConflict, "Request with this Idempotency-Key is still in progress")
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read idempotency record", slog.Any("error", err))
		writeJSONError(w, http.StatusServiceUnavailable, "Idempotency store unavailable")
		return
	}

	var record idempotencyRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		logger.ErrorContext(ctx, "Corrupt idempotency record", slog.Any("error", err))
		writeJSONError(w, http.StatusInternalServerError, "An unexpected error occurred.")
		return
	}

	switch {
	case record.RequestHash != requestHash:
		writeJSONError(w, http.StatusConflict, "Idempotency-Key was already used with a different request")
	case record.State != idempotencyStateCompleted:
		writeJSONError(w, http.StatusConflict, "Request with this Idempotency-Key is still in progress")
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(IdempotentReplayedHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

func hashRequest(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{0})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
