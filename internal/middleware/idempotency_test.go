package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bookPath = "/api/rides/ride-1/book"

type idempotencyFixture struct {
	mr     *miniredis.Miniredis
	router *gin.Engine
	calls  int
	status int
}

func newIdempotencyFixture(t *testing.T) *idempotencyFixture {
	gin.SetMode(gin.TestMode)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	f := &idempotencyFixture{mr: mr, status: http.StatusCreated}
	f.router = gin.New()
	f.router.Use(func(c *gin.Context) {
		c.Set(UserIDKey, "user-1")
		c.Next()
	})
	f.router.Use(IdempotencyMiddleware(client))
	handler := func(c *gin.Context) {
		f.calls++
		c.JSON(f.status, gin.H{"call": f.calls})
	}
	f.router.POST(bookPath, handler)
	f.router.GET(bookPath, handler)
	return f
}

func (f *idempotencyFixture) do(method, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, bookPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func storeKey(key string) string {
	return "idempotency:user-1:" + bookPath + ":" + key
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error.Code
}

func TestFingerprintOf(t *testing.T) {
	a := fingerprintOf([]byte(`{"seats":1}`))
	assert.Len(t, a, 64)
	assert.Equal(t, a, fingerprintOf([]byte(`{"seats":1}`)))
	assert.NotEqual(t, a, fingerprintOf([]byte(`{"seats":2}`)))
}

func TestIdempotency_ReplaysFinishedResponse(t *testing.T) {
	f := newIdempotencyFixture(t)

	first := f.do(http.MethodPost, "k1", `{"seats":1}`)
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, idempotencyTTL, f.mr.TTL(storeKey("k1")))

	second := f.do(http.MethodPost, "k1", `{"seats":1}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, f.calls)
}

func TestIdempotency_ReplaysClientErrors(t *testing.T) {
	f := newIdempotencyFixture(t)
	f.status = http.StatusConflict

	f.do(http.MethodPost, "k1", `{"seats":1}`)
	second := f.do(http.MethodPost, "k1", `{"seats":1}`)

	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, f.calls)
}

func TestIdempotency_KeyReusedWithDifferentBody(t *testing.T) {
	f := newIdempotencyFixture(t)

	f.do(http.MethodPost, "k1", `{"seats":1}`)
	w := f.do(http.MethodPost, "k1", `{"seats":2}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "POLICY_VIOLATION", errorCode(t, w))
	assert.Equal(t, 1, f.calls)
}

func TestIdempotency_InFlightDuplicate(t *testing.T) {
	f := newIdempotencyFixture(t)
	claim, err := json.Marshal(storedResponse{
		Fingerprint: fingerprintOf([]byte(`{"seats":1}`)),
		Pending:     true,
	})
	require.NoError(t, err)
	require.NoError(t, f.mr.Set(storeKey("k1"), string(claim)))

	w := f.do(http.MethodPost, "k1", `{"seats":1}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STATE", errorCode(t, w))
	assert.Equal(t, 0, f.calls)
}

func TestIdempotency_StaleClaimExpires(t *testing.T) {
	f := newIdempotencyFixture(t)
	claim, err := json.Marshal(storedResponse{
		Fingerprint: fingerprintOf([]byte(`{"seats":1}`)),
		Pending:     true,
	})
	require.NoError(t, err)
	require.NoError(t, f.mr.Set(storeKey("k1"), string(claim)))
	f.mr.SetTTL(storeKey("k1"), idempotencyClaimTTL)
	f.mr.FastForward(idempotencyClaimTTL)

	w := f.do(http.MethodPost, "k1", `{"seats":1}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, f.calls)
}

func TestIdempotency_ServerErrorReleasesKey(t *testing.T) {
	f := newIdempotencyFixture(t)
	f.status = http.StatusInternalServerError

	first := f.do(http.MethodPost, "k1", `{"seats":1}`)
	assert.Equal(t, http.StatusInternalServerError, first.Code)
	assert.False(t, f.mr.Exists(storeKey("k1")))

	f.status = http.StatusCreated
	second := f.do(http.MethodPost, "k1", `{"seats":1}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Empty(t, second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 2, f.calls)
}

func TestIdempotency_StoreKeyIncludesUserAndPath(t *testing.T) {
	f := newIdempotencyFixture(t)

	f.do(http.MethodPost, "k1", `{"seats":1}`)

	keys := f.mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, storeKey("k1"), keys[0])
}

func TestIdempotency_Bypass(t *testing.T) {
	tests := []struct {
		name   string
		method string
		key    string
	}{
		{"post without key", http.MethodPost, ""},
		{"get with key", http.MethodGet, "k1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newIdempotencyFixture(t)

			f.do(tt.method, tt.key, `{"seats":1}`)
			w := f.do(tt.method, tt.key, `{"seats":1}`)

			assert.Equal(t, http.StatusCreated, w.Code)
			assert.Empty(t, w.Header().Get("Idempotent-Replayed"))
			assert.Equal(t, 2, f.calls)
			assert.Empty(t, f.mr.Keys())
		})
	}
}

func TestIdempotency_RedisDownServesRequest(t *testing.T) {
	f := newIdempotencyFixture(t)
	f.mr.Close()

	w := f.do(http.MethodPost, "k1", `{"seats":1}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, f.calls)
}
