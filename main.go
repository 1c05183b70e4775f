package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"

	"github.com/CodeAndHammer/codebreaker/internal/code"
	"github.com/CodeAndHammer/codebreaker/internal/constants"
	"github.com/CodeAndHammer/codebreaker/internal/game"
	"github.com/CodeAndHammer/codebreaker/internal/handlers"
	"github.com/CodeAndHammer/codebreaker/internal/models"
	"github.com/CodeAndHammer/codebreaker/internal/session"
	"github.com/CodeAndHammer/codebreaker/internal/util"
)

func main() {
	_ = godotenv.Load()

	isProduction := os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production"
	util.InitLogger(util.GetEnv("LOG_LEVEL", "info"), isProduction)
	util.LogInfo("Starting Codebreaker in %s mode", map[bool]string{true: "production", false: "development"}[isProduction])

	app := newApp(isProduction)
	if err := validateConfig(app); err != nil {
		util.LogFatal("Invalid game configuration: %v", err)
	}
	util.LogInfo("Codes are %d characters drawn from %q", app.CodeLength, app.Pool)

	router := setupRouter(app)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCleanupRoutines(ctx, app)
	startServer(ctx, router)
}

func newApp(isProduction bool) *models.App {
	return &models.App{
		Pool:           util.GetEnv("CODE_POOL", constants.DefaultPool),
		CodeLength:     util.GetEnvInt("CODE_LENGTH", constants.DefaultLength),
		NewSource:      func() code.RandomSource { return code.CryptoSource{} },
		GameSessions:   make(map[string]*models.GameState),
		LimiterMap:     make(map[string]*models.RateLimiterEntry),
		IsProduction:   isProduction,
		StartTime:      time.Now(),
		CookieMaxAge:   util.GetEnvDuration("COOKIE_MAX_AGE", 2*time.Hour),
		RateLimitRPS:   util.GetEnvInt("RATE_LIMIT_RPS", 5),
		RateLimitBurst: util.GetEnvInt("RATE_LIMIT_BURST", 10),
		RateLimiterTTL: util.GetEnvDuration("RATE_LIMITER_TTL", 1*time.Hour),
		SessionTimeout: util.GetEnvDuration("SESSION_TTL", 3*time.Hour),
	}
}

// validateConfig builds a throwaway session so a bad pool or length fails at
// start-up instead of on the first request.
func validateConfig(app *models.App) error {
	_, err := game.NewSession(app.Pool, app.CodeLength, app.NewSource())
	return err
}

func setupRouter(app *models.App) *gin.Engine {
	router := gin.Default()

	router.Use(requestIDMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(csrfMiddleware(app))
	router.Use(validateCSRFMiddleware())
	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression))
	router.Use(cacheHeadersMiddleware())

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		util.LogWarn("Failed to set trusted proxies: %v", err)
	}

	wrap := func(h func(*models.App, *gin.Context)) gin.HandlerFunc {
		return func(c *gin.Context) { h(app, c) }
	}
	limited := rateLimitMiddleware(app)

	router.GET(constants.RouteHome, wrap(handlers.HomeHandler))
	router.GET(constants.RouteGameState, wrap(handlers.GameStateHandler))
	router.POST(constants.RouteGuess, limited, wrap(handlers.GuessHandler))
	router.POST(constants.RouteRestart, limited, wrap(handlers.RestartHandler))
	router.POST(constants.RouteNewGame, limited, wrap(handlers.NewGameHandler))
	router.POST(constants.RouteReveal, limited, wrap(handlers.RevealHandler))
	router.GET(constants.RouteHealthz, wrap(handlers.HealthzHandler))

	return router
}

func cacheHeadersMiddleware() gin.HandlerFunc {
	return cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	})
}

func startServer(ctx context.Context, router *gin.Engine) {
	port := util.GetEnv("PORT", "8080")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		<-ctx.Done()
		util.LogInfo("Shutdown signal received, shutting down server gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			util.LogWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	util.LogInfo("Server starting on http://localhost:%s", port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		util.LogFatal("Server failed to start: %v", err)
	}
	<-idleConnsClosed
	util.LogInfo("Server shutdown complete")
}

func startCleanupRoutines(ctx context.Context, app *models.App) {
	session.StartSessionCleanup(ctx, app, 10*time.Minute)

	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cleanupStaleRateLimiters(app)
			}
		}
	}()

	util.LogInfo("Started cleanup routines for sessions and rate limiters")
}

const (
	limiterSoftCap = 10000
	limiterHardCap = 50000
)

func cleanupStaleRateLimiters(app *models.App) int {
	app.LimiterMutex.Lock()
	defer app.LimiterMutex.Unlock()

	cutoffTime := time.Now().Add(-app.RateLimiterTTL)
	stale := lo.PickBy(app.LimiterMap, func(_ string, entry *models.RateLimiterEntry) bool {
		return entry.LastAccess.Before(cutoffTime)
	})
	for key := range stale {
		delete(app.LimiterMap, key)
	}
	removedCount := len(stale)

	if len(app.LimiterMap) > limiterSoftCap {
		util.LogInfo("Rate limiter map too large (%d entries), performing emergency cleanup", len(app.LimiterMap))

		if len(app.LimiterMap) > limiterHardCap {
			keys := lo.Keys(app.LimiterMap)
			slices.SortFunc(keys, func(a, b string) int {
				return app.LimiterMap[a].LastAccess.Compare(app.LimiterMap[b].LastAccess)
			})

			entriesToRemove := len(keys) / 2
			for _, key := range keys[:entriesToRemove] {
				delete(app.LimiterMap, key)
			}
			removedCount += entriesToRemove
			util.LogInfo("Removed %d oldest rate limiters", entriesToRemove)
		}
	}

	if removedCount > 0 {
		util.LogInfo("Cleaned up %d stale rate limiters", removedCount)
	}
	return removedCount
}
