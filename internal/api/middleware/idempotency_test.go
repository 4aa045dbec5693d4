package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failAll error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return redis.NewBoolResult(false, f.failAll)
	}
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeStore) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type countingHandler struct {
	calls  int
	status int
	body   string
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.calls++
	_, _ = io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(h.status)
	_, _ = w.Write([]byte(h.body))
}

func postTransfer(handler http.Handler, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/transfers", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestIdempotency(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	const body = `{"senderId":1,"receiverId":2,"amount":"100.0"}`

	t.Run("replays the stored response", func(t *testing.T) {
		store := newFakeStore()
		next := &countingHandler{status: http.StatusOK, body: `{"status":"completed"}`}
		handler := Idempotency(store, time.Hour, time.Minute, logger)(next)

		first := postTransfer(handler, "k-1", body)
		second := postTransfer(handler, "k-1", body)

		assert.Equal(t, 1, next.calls)
		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, http.StatusOK, second.Code)
		assert.Equal(t, first.Body.String(), second.Body.String())
		assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
		assert.Equal(t, "true", second.Header().Get(IdempotentReplayedHeader))
		assert.Empty(t, first.Header().Get(IdempotentReplayedHeader))
		assert.Equal(t, time.Hour, store.ttls[idempotencyKeyPrefix+"k-1"])
	})

	t.Run("client errors are replayed too", func(t *testing.T) {
		store := newFakeStore()
		next := &countingHandler{status: http.StatusConflict, body: `{"error":{"message":"constraint"}}`}
		handler := Idempotency(store, time.Hour, time.Minute, logger)(next)

		postTransfer(handler, "k-2", body)
		second := postTransfer(handler, "k-2", body)

		assert.Equal(t, 1, next.calls)
		assert.Equal(t, http.StatusConflict, second.Code)
	})

	t.Run("reused key with another body is a conflict", func(t *testing.T) {
		store := newFakeStore()
		next := &countingHandler{status: http.StatusOK, body: `{}`}
		handler := Idempotency(store, time.Hour, time.Minute, logger)(next)

		postTransfer(handler, "k-3", body)
		second := postTransfer(handler, "k-3", `{"senderId":1,"receiverId":2,"amount":"999.0"}`)

		assert.Equal(t, 1, next.calls)
		assert.Equal(t, http.StatusConflict, second.Code)
		assert.Contains(t, second.Body.String(), "different request")
	})

	t.Run("in-flight duplicate is a conflict", func(t *testing.T) {
		store := newFakeStore()
		var handler http.Handler
		var inner *httptest.ResponseRecorder
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			inner = postTransfer(handler, "k-4", body)
			w.WriteHeader(http.StatusOK)
		})
		handler = Idempotency(store, time.Hour, time.Minute, logger)(next)

		outer := postTransfer(handler, "k-4", body)

		require.NotNil(t, inner)
		assert.Equal(t, http.StatusConflict, inner.Code)
		assert.Contains(t, inner.Body.String(), "still in progress")
		assert.Equal(t, http.StatusOK, outer.Code)
	})

	t.Run("server errors release the key", func(t *testing.T) {
		store := newFakeStore()
		next := &countingHandler{status: http.StatusServiceUnavailable, body: `{}`}
		handler := Idempotency(store, time.Hour, time.Minute, logger)(next)

		postTransfer(handler, "k-5", body)
		postTransfer(handler, "k-5", body)

		assert.Equal(t, 2, next.calls)
		assert.Empty(t, store.data)
	})

	t.Run("handler still sees the body", func(t *testing.T) {
		store := newFakeStore()
		var seen string
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			seen = string(b)
		})

		postTransfer(Idempotency(store, time.Hour, time.Minute, logger)(next), "k-6", body)

		assert.Equal(t, body, seen)
	})

	t.Run("requests without a key pass through", func(t *testing.T) {
		store := newFakeStore()
		next := &countingHandler{status: http.StatusOK, body: `{}`}
		handler := Idempotency(store, time.Hour, time.Minute, logger)(next)

		postTransfer(handler, "", body)
		postTransfer(handler, "", body)

		assert.Equal(t, 2, next.calls)
		assert.Empty(t, store.data)
	})

	t.Run("oversized key is rejected", func(t *testing.T) {
		next := &countingHandler{status: http.StatusOK}
		rec := postTransfer(Idempotency(newFakeStore(), time.Hour, time.Minute, logger)(next), strings.Repeat("x", maxIdempotencyKeyLength+1), body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Zero(t, next.calls)
	})

	t.Run("store failure refuses the request", func(t *testing.T) {
		store := newFakeStore()
		store.failAll = errors.New("dial tcp: connection refused")
		next := &countingHandler{status: http.StatusOK}

		rec := postTransfer(Idempotency(store, time.Hour, time.Minute, logger)(next), "k-7", body)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Zero(t, next.calls)
	})

	t.Run("nil store disables the middleware", func(t *testing.T) {
		next := &countingHandler{status: http.StatusOK}
		handler := Idempotency(nil, time.Hour, time.Minute, logger)(next)

		postTransfer(handler, "k-8", body)
		postTransfer(handler, "k-8", body)

		assert.Equal(t, 2, next.calls)
	})

	t.Run("pending record lives for the lock ttl", func(t *testing.T) {
		store := newFakeStore()
		var pendingTTL time.Duration
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pendingTTL = store.ttls[idempotencyKeyPrefix+"k-9"]
			w.WriteHeader(http.StatusOK)
		})

		postTransfer(Idempotency(store, time.Hour, 90*time.Second, logger)(next), "k-9", body)

		assert.Equal(t, 90*time.Second, pendingTTL)
	})

	t.Run("expired pending record does not run the transfer twice", func(t *testing.T) {
		store := newFakeStore()
		var handler http.Handler
		var retry *httptest.ResponseRecorder
		calls := 0
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			store.Del(context.Background(), idempotencyKeyPrefix+"k-10")
			retry = postTransfer(handler, "k-10", body)
			w.WriteHeader(http.StatusOK)
		})
		handler = Idempotency(store, time.Hour, time.Minute, logger)(next)

		first := postTransfer(handler, "k-10", body)

		assert.Equal(t, 1, calls)
		assert.Equal(t, http.StatusOK, first.Code)
		require.NotNil(t, retry)
		assert.Equal(t, http.StatusConflict, retry.Code)

		replay := postTransfer(handler, "k-10", body)
		assert.Equal(t, 1, calls)
		assert.Equal(t, "true", replay.Header().Get(IdempotentReplayedHeader))
	})

	t.Run("oversized body is rejected before the handler", func(t *testing.T) {
		next := &countingHandler{status: http.StatusOK}
		huge := `{"pad":"` + strings.Repeat("x", maxIdempotentBodyBytes) + `"}`

		rec := postTransfer(Idempotency(newFakeStore(), time.Hour, time.Minute, logger)(next), "k-11", huge)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Zero(t, next.calls)
	})

	t.Run("non-positive lock ttl uses the default", func(t *testing.T) {
		store := newFakeStore()
		var pendingTTL time.Duration
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pendingTTL = store.ttls[idempotencyKeyPrefix+"k-12"]
		})

		postTransfer(Idempotency(store, time.Hour, 0, logger)(next), "k-12", body)

		assert.Equal(t, defaultIdempotencyLockTTL, pendingTTL)
	})
}
