package idempotency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *mr.Miniredis) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	return NewRedisStore(client, "test:idem:", time.Hour), m
}

func TestRedisStore_Lifecycle(t *testing.T) {
	store, m := newRedisStore(t)
	ctx := context.Background()

	resp, err := store.Begin(ctx, "k1")
	require.NoError(t, err)
	require.Nil(t, resp)

	_, err = store.Begin(ctx, "k1")
	require.ErrorIs(t, err, ErrInProgress)

	require.NoError(t, store.Complete(ctx, "k1", &Response{Status: 201, ContentType: "application/json", Body: []byte(`{"ok":true}`)}))
	resp, err = store.Begin(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 201, resp.Status)
	assert.Equal(t, `{"ok":true}`, string(resp.Body))

	m.FastForward(2 * time.Hour)
	resp, err = store.Begin(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, resp, "expired keys can be claimed again")

	require.NoError(t, store.Release(ctx, "k1"))
	assert.False(t, m.Exists("test:idem:k1"))
}

func newRouter(store Store, calls *int32, status int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/items", Middleware(store), func(c *gin.Context) {
		n := atomic.AddInt32(calls, 1)
		c.JSON(status, gin.H{"call": n})
	})
	return r
}

func post(r *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set(HeaderKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware_ReplaysCompletedRequests(t *testing.T) {
	store, _ := newRedisStore(t)
	var calls int32
	r := newRouter(store, &calls, http.StatusCreated)

	first := post(r, "abc")
	second := post(r, "abc")
	other := post(r, "xyz")
	none := post(r, "")

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(HeaderReplayed))
	assert.Empty(t, first.Header().Get(HeaderReplayed))
	assert.JSONEq(t, `{"call":2}`, other.Body.String())
	assert.JSONEq(t, `{"call":3}`, none.Body.String())
	assert.Equal(t, int32(3), calls)
}

func TestMiddleware_ConflictWhileInProgress(t *testing.T) {
	store, _ := newRedisStore(t)
	var calls int32
	r := newRouter(store, &calls, http.StatusCreated)

	// Claim the scoped key the way a concurrent request would.
	req := httptest.NewRequest(http.MethodPost, "/items", nil)
	req.Header.Set(HeaderKey, "abc")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	blocking := &blockingStore{Store: store}
	Middleware(blocking)(c)
	require.Equal(t, 1, blocking.begun)

	resp := post(r, "abc")
	assert.Equal(t, http.StatusConflict, resp.Code)
	assert.JSONEq(t, `{"data":null,"error":{"name":"ConflictError","message":"A request with this Idempotency-Key is in progress","status":409,"details":{}}}`, resp.Body.String())
	assert.Zero(t, calls)
}

// blockingStore claims keys but never completes them.
type blockingStore struct {
	Store
	begun int
}

func (b *blockingStore) Begin(ctx context.Context, key string) (*Response, error) {
	b.begun++
	return b.Store.Begin(ctx, key)
}

func (b *blockingStore) Complete(ctx context.Context, key string, resp *Response) error {
	return nil
}

func TestMiddleware_ServerErrorsReleaseTheKey(t *testing.T) {
	store, _ := newRedisStore(t)
	var calls int32
	r := newRouter(store, &calls, http.StatusInternalServerError)

	post(r, "abc")
	post(r, "abc")
	assert.Equal(t, int32(2), calls)
}

func TestMiddleware_FailsOpenWhenStoreIsDown(t *testing.T) {
	store, m := newRedisStore(t)
	m.Close()
	var calls int32
	r := newRouter(store, &calls, http.StatusCreated)

	assert.Equal(t, http.StatusCreated, post(r, "abc").Code)
	assert.Equal(t, http.StatusCreated, post(r, "abc").Code)
	assert.Equal(t, int32(2), calls)
}
