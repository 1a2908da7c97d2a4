package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret string, p Principal) string {
	t.Helper()
	if p.ExpiresAt == nil {
		p.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &p).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuthenticateAndRequireRole(t *testing.T) {
	const secret = "session-secret"
	r := gin.New()
	r.GET("/admin", Authenticate(secret), RequireRole(RoleAdmin), func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, p.UserID)
	})

	testCases := []struct {
		name     string
		token    string
		expected int
	}{
		{name: "no token", token: "", expected: http.StatusUnauthorized},
		{name: "garbage", token: "abc.def.ghi", expected: http.StatusUnauthorized},
		{name: "wrong secret", token: signToken(t, "other", Principal{UserID: "u1", Role: RoleAdmin}), expected: http.StatusUnauthorized},
		{name: "expired", token: signToken(t, secret, Principal{UserID: "u1", Role: RoleAdmin,
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}}), expected: http.StatusUnauthorized},
		{name: "missing user", token: signToken(t, secret, Principal{Role: RoleAdmin}), expected: http.StatusUnauthorized},
		{name: "vendor role", token: signToken(t, secret, Principal{UserID: "u2", Role: "VENDOR"}), expected: http.StatusForbidden},
		{name: "admin", token: signToken(t, secret, Principal{UserID: "u1", Role: RoleAdmin}), expected: http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(r, http.MethodGet, "/admin", tc.token)
			assert.Equal(t, tc.expected, w.Code)
			if tc.expected == http.StatusOK {
				assert.Equal(t, "u1", w.Body.String())
			}
		})
	}
}

func TestCacheAndFlushOnWrite(t *testing.T) {
	store := NewResponseCache(time.Minute)
	calls := 0

	r := gin.New()
	r.Use(FlushOnWrite(store))
	r.GET("/items", Cache(store, time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.POST("/items", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/fail", func(c *gin.Context) { c.Status(http.StatusConflict) })

	w := serve(r, http.MethodGet, "/items", "")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":1}`, w.Body.String())

	w = serve(r, http.MethodGet, "/items", "")
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"calls":1}`, w.Body.String())

	serve(r, http.MethodPost, "/fail", "")
	w = serve(r, http.MethodGet, "/items", "")
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	serve(r, http.MethodPost, "/items", "")
	w = serve(r, http.MethodGet, "/items", "")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":2}`, w.Body.String())
}

func TestCache_SkipsResponsesRenderedAcrossFlush(t *testing.T) {
	store := NewResponseCache(time.Minute)
	calls := 0

	r := gin.New()
	r.GET("/items", Cache(store, time.Minute), func(c *gin.Context) {
		calls++
		// The listing is read, then a decision commits before it is written out.
		snapshot := calls
		if calls == 1 {
			store.Flush()
		}
		c.JSON(http.StatusOK, gin.H{"calls": snapshot})
	})

	w := serve(r, http.MethodGet, "/items", "")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":1}`, w.Body.String())

	w = serve(r, http.MethodGet, "/items", "")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":2}`, w.Body.String())

	w = serve(r, http.MethodGet, "/items", "")
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":2}`, w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(1), 2)
	r := gin.New()
	r.GET("/", RateLimiter(limiter), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/", "").Code)
	w := serve(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestIPRateLimiter_Sweep(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	limiter := NewIPRateLimiter(rate.Limit(1), 1)
	limiter.now = func() time.Time { return now }

	limiter.GetLimiter("10.0.0.1")
	now = now.Add(10 * time.Minute)
	limiter.GetLimiter("10.0.0.2")

	assert.Equal(t, 1, limiter.Sweep(5*time.Minute))
	assert.Len(t, limiter.visitors, 1)
	assert.Contains(t, limiter.visitors, "10.0.0.2")
}
