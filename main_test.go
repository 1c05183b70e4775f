package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/CodeAndHammer/codebreaker/internal/code"
	"github.com/CodeAndHammer/codebreaker/internal/constants"
	"github.com/CodeAndHammer/codebreaker/internal/models"
)

type cycleSource struct{ next int }

func (s *cycleSource) Intn(n int) int {
	v := s.next % n
	s.next++
	return v
}

func testApp() *models.App {
	return &models.App{
		Pool:           "ABCDEF",
		CodeLength:     4,
		NewSource:      func() code.RandomSource { return &cycleSource{} },
		GameSessions:   make(map[string]*models.GameState),
		LimiterMap:     make(map[string]*models.RateLimiterEntry),
		StartTime:      time.Now(),
		CookieMaxAge:   time.Hour,
		RateLimitRPS:   100,
		RateLimitBurst: 100,
		RateLimiterTTL: time.Hour,
		SessionTimeout: time.Hour,
	}
}

// client keeps cookies between requests against a router.
type client struct {
	t       *testing.T
	router  *gin.Engine
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T, app *models.App) *client {
	gin.SetMode(gin.TestMode)
	return &client{t: t, router: setupRouter(app), cookies: map[string]*http.Cookie{}}
}

func (cl *client) do(method, path, body string, withCSRF bool) *httptest.ResponseRecorder {
	cl.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cl.cookies {
		req.AddCookie(c)
	}
	if withCSRF {
		if c, ok := cl.cookies[constants.CSRFCookieName]; ok {
			req.Header.Set(constants.CSRFHeaderName, c.Value)
		}
	}
	rec := httptest.NewRecorder()
	cl.router.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		cl.cookies[c.Name] = c
	}
	return rec
}

func TestRouterFullGame(t *testing.T) {
	cl := newClient(t, testApp())

	rec := cl.do(http.MethodGet, constants.RouteHome, "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, cl.cookies, constants.SessionCookieName)
	require.Contains(t, cl.cookies, constants.CSRFCookieName)

	rec = cl.do(http.MethodPost, constants.RouteGuess, `{"guess":"DCBA"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.GuessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.GuessView{Text: "DCBA", Correct: 0, Close: 4}, resp.Guess)

	rec = cl.do(http.MethodPost, constants.RouteGuess, `{"guess":"ABCD"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Game.Solved)
	assert.Equal(t, 2, resp.Game.GuessCount)

	rec = cl.do(http.MethodPost, constants.RouteRestart, "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = cl.do(http.MethodGet, constants.RouteGameState, "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var view models.GameView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 0, view.GuessCount)
	assert.False(t, view.Solved)
}

func TestRouterRejectsMissingCSRF(t *testing.T) {
	cl := newClient(t, testApp())
	cl.do(http.MethodGet, constants.RouteHome, "", false)

	rec := cl.do(http.MethodPost, constants.RouteGuess, `{"guess":"ABCD"}`, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), constants.ErrorCodeInvalidCSRF)
}

func TestRouterRateLimit(t *testing.T) {
	app := testApp()
	app.RateLimitRPS = 1
	app.RateLimitBurst = 2
	cl := newClient(t, app)
	cl.do(http.MethodGet, constants.RouteHome, "", false)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, cl.do(http.MethodPost, constants.RouteRestart, "", true).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRouterHeaders(t *testing.T) {
	cl := newClient(t, testApp())
	rec := cl.do(http.MethodGet, constants.RouteHealthz, "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
}

func TestRequestIDIsPropagated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(requestIDMiddleware())
	var seen string
	router.GET("/", func(c *gin.Context) {
		seen, _ = c.Request.Context().Value(constants.RequestIDKey).(string)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
}

func TestGetLimiterReusesEntry(t *testing.T) {
	app := testApp()
	first := getLimiter(app, "10.0.0.1")
	second := getLimiter(app, "10.0.0.1")
	assert.Same(t, first, second)
	assert.Len(t, app.LimiterMap, 1)
}

func TestCleanupStaleRateLimiters(t *testing.T) {
	app := testApp()
	app.LimiterMap["old"] = &models.RateLimiterEntry{
		Limiter:    rate.NewLimiter(1, 1),
		LastAccess: time.Now().Add(-2 * time.Hour),
	}
	app.LimiterMap["new"] = &models.RateLimiterEntry{
		Limiter:    rate.NewLimiter(1, 1),
		LastAccess: time.Now(),
	}

	assert.Equal(t, 1, cleanupStaleRateLimiters(app))
	assert.NotContains(t, app.LimiterMap, "old")
	assert.Contains(t, app.LimiterMap, "new")
}

func TestCleanupStaleRateLimitersHardCap(t *testing.T) {
	app := testApp()
	now := time.Now()
	for i := 0; i < limiterHardCap+2; i++ {
		app.LimiterMap[fmt.Sprintf("ip-%d", i)] = &models.RateLimiterEntry{
			Limiter:    rate.NewLimiter(1, 1),
			LastAccess: now.Add(time.Duration(i) * time.Millisecond),
		}
	}

	removed := cleanupStaleRateLimiters(app)
	assert.Equal(t, (limiterHardCap+2)/2, removed)
	assert.NotContains(t, app.LimiterMap, "ip-0")
	assert.Contains(t, app.LimiterMap, fmt.Sprintf("ip-%d", limiterHardCap+1))
}

func TestValidateConfig(t *testing.T) {
	app := testApp()
	assert.NoError(t, validateConfig(app))

	app.CodeLength = 0
	assert.Error(t, validateConfig(app))

	app.CodeLength = 4
	app.Pool = ""
	assert.Error(t, validateConfig(app))
}

func TestNewAppReadsEnv(t *testing.T) {
	t.Setenv("CODE_POOL", "0123456789")
	t.Setenv("CODE_LENGTH", "5")
	t.Setenv("SESSION_TTL", "30m")

	app := newApp(true)
	assert.Equal(t, "0123456789", app.Pool)
	assert.Equal(t, 5, app.CodeLength)
	assert.Equal(t, 30*time.Minute, app.SessionTimeout)
	assert.True(t, app.IsProduction)
	assert.NoError(t, validateConfig(app))
}
