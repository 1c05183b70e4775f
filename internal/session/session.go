package session

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/CodeAndHammer/codebreaker/internal/constants"
	"github.com/CodeAndHammer/codebreaker/internal/game"
	"github.com/CodeAndHammer/codebreaker/internal/models"
	"github.com/CodeAndHammer/codebreaker/internal/util"
)

func GetOrCreateSession(app *models.App, c *gin.Context) string {
	sessionID, err := c.Cookie(constants.SessionCookieName)
	if err != nil || uuid.Validate(sessionID) != nil {
		sessionID = uuid.NewString()
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(constants.SessionCookieName, sessionID, int(app.CookieMaxAge.Seconds()), "/", "", app.IsProduction, true)
		util.RequestLogger(c.Request.Context()).Info().Str("session", sessionID).Msg("Created new session")
	}
	return sessionID
}

// GetGameState returns the game for sessionID, creating one on first access.
// Concurrent first accesses for the same ID all receive the same game.
func GetGameState(app *models.App, ctx context.Context, sessionID string) (*models.GameState, error) {
	if gameState, ok := touchGameState(app, sessionID); ok {
		util.RequestLogger(ctx).Debug().Str("session", sessionID).Msg("Retrieved cached game state")
		return gameState, nil
	}

	fresh, err := newGameState(app)
	if err != nil {
		return nil, err
	}

	app.SessionMutex.Lock()
	gameState, exists := app.GameSessions[sessionID]
	if !exists {
		gameState = fresh
		app.GameSessions[sessionID] = gameState
	}
	gameState.LastAccessTime = time.Now()
	app.SessionMutex.Unlock()

	if !exists {
		logNewGame(ctx, sessionID, gameState)
	}
	return gameState, nil
}

// CreateNewGame replaces any game stored under sessionID with one holding a
// freshly generated secret.
func CreateNewGame(app *models.App, ctx context.Context, sessionID string) (*models.GameState, error) {
	gameState, err := newGameState(app)
	if err != nil {
		return nil, err
	}
	SaveGameState(app, sessionID, gameState)
	logNewGame(ctx, sessionID, gameState)
	return gameState, nil
}

func touchGameState(app *models.App, sessionID string) (*models.GameState, bool) {
	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()
	gameState, ok := app.GameSessions[sessionID]
	if ok {
		gameState.LastAccessTime = time.Now()
	}
	return gameState, ok
}

func newGameState(app *models.App) (*models.GameState, error) {
	gs, err := game.NewSession(app.Pool, app.CodeLength, app.NewSource())
	if err != nil {
		return nil, err
	}
	return &models.GameState{
		Session:        gs,
		LastAccessTime: time.Now(),
	}, nil
}

func logNewGame(ctx context.Context, sessionID string, gameState *models.GameState) {
	util.RequestLogger(ctx).Info().
		Str("session", sessionID).
		Str("pool", gameState.Session.Pool()).
		Int("length", gameState.Session.Length()).
		Msg("New game created")
}

func SaveGameState(app *models.App, sessionID string, gameState *models.GameState) {
	app.SessionMutex.Lock()
	app.GameSessions[sessionID] = gameState
	gameState.LastAccessTime = time.Now()
	app.SessionMutex.Unlock()
}

func CleanupExpiredSessions(app *models.App) int {
	app.SessionMutex.Lock()
	defer app.SessionMutex.Unlock()

	now := time.Now()
	expiredCount := 0
	for sessionID, gameState := range app.GameSessions {
		if now.Sub(gameState.LastAccessTime) > app.SessionTimeout {
			delete(app.GameSessions, sessionID)
			expiredCount++
		}
	}

	if expiredCount > 0 {
		util.LogInfo("Cleaned up %d expired sessions", expiredCount)
	}
	return expiredCount
}

func StartSessionCleanup(ctx context.Context, app *models.App, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				CleanupExpiredSessions(app)
			}
		}
	}()
	util.LogInfo("Started session cleanup goroutine")
}
