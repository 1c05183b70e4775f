package handlers

import (
	"errors"
	"net/http"
	"runtime"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/CodeAndHammer/codebreaker/internal/constants"
	"github.com/CodeAndHammer/codebreaker/internal/game"
	"github.com/CodeAndHammer/codebreaker/internal/models"
	"github.com/CodeAndHammer/codebreaker/internal/session"
	"github.com/CodeAndHammer/codebreaker/internal/util"
)

type guessRequest struct {
	Guess string `json:"guess" form:"guess"`
}

func HomeHandler(app *models.App, c *gin.Context) {
	gameState, ok := loadGame(app, c)
	if !ok {
		return
	}
	gameState.Mu.Lock()
	view := BuildGameView(gameState)
	gameState.Mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"service": "codebreaker",
		"message": "Guess the secret code!",
		"endpoints": []string{
			"GET " + constants.RouteGameState,
			"POST " + constants.RouteGuess,
			"POST " + constants.RouteRestart,
			"POST " + constants.RouteNewGame,
			"POST " + constants.RouteReveal,
			"GET " + constants.RouteHealthz,
		},
		"game": view,
	})
}

func GameStateHandler(app *models.App, c *gin.Context) {
	gameState, ok := loadGame(app, c)
	if !ok {
		return
	}
	gameState.Mu.Lock()
	defer gameState.Mu.Unlock()
	c.JSON(http.StatusOK, BuildGameView(gameState))
}

func GuessHandler(app *models.App, c *gin.Context) {
	logger := util.RequestLogger(c.Request.Context())
	gameState, ok := loadGame(app, c)
	if !ok {
		return
	}

	var req guessRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   constants.ErrorCodeBadRequest,
			Message: err.Error(),
		})
		return
	}

	gameState.Mu.Lock()
	defer gameState.Mu.Unlock()

	if gameState.Over() {
		logger.Warn().Msg("Guess attempted on finished game")
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   constants.ErrorCodeGameOver,
			Message: "the game is over; restart or start a new game",
		})
		return
	}

	text := NormalizeGuess(req.Guess, gameState.Session.Pool())
	scored, err := gameState.Session.Guess(text)
	if err != nil {
		logger.Info().Err(err).Str("guess", text).Msg("Rejected guess")
		c.JSON(http.StatusUnprocessableEntity, guessErrorResponse(err, req.Guess))
		return
	}

	if scored.Solved(gameState.Session.Length()) {
		gameState.Solved = true
		logger.Info().Int("guesses", gameState.Session.GuessCount()).Msg("Code solved")
	} else {
		logger.Debug().Str("guess", scored.String()).Msg("Scored guess")
	}

	c.JSON(http.StatusOK, models.GuessResponse{
		Guess: toGuessView(scored),
		Game:  BuildGameView(gameState),
	})
}

func RestartHandler(app *models.App, c *gin.Context) {
	gameState, ok := loadGame(app, c)
	if !ok {
		return
	}
	gameState.Mu.Lock()
	defer gameState.Mu.Unlock()

	gameState.Session.Restart()
	gameState.Solved = false
	gameState.Revealed = false
	util.RequestLogger(c.Request.Context()).Info().Msg("Game restarted with the same code")
	c.JSON(http.StatusOK, BuildGameView(gameState))
}

func NewGameHandler(app *models.App, c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := session.GetOrCreateSession(app, c)
	gameState, err := session.CreateNewGame(app, ctx, sessionID)
	if err != nil {
		internalError(c, err)
		return
	}
	gameState.Mu.Lock()
	defer gameState.Mu.Unlock()
	c.JSON(http.StatusOK, BuildGameView(gameState))
}

func RevealHandler(app *models.App, c *gin.Context) {
	gameState, ok := loadGame(app, c)
	if !ok {
		return
	}
	gameState.Mu.Lock()
	defer gameState.Mu.Unlock()

	gameState.Revealed = true
	util.RequestLogger(c.Request.Context()).Info().
		Int("guesses", gameState.Session.GuessCount()).
		Msg("Player revealed the code")
	c.JSON(http.StatusOK, BuildGameView(gameState))
}

func HealthzHandler(app *models.App, c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(app.StartTime)

	app.SessionMutex.RLock()
	sessionCount := len(app.GameSessions)
	app.SessionMutex.RUnlock()

	app.LimiterMutex.RLock()
	limiterCount := len(app.LimiterMap)
	app.LimiterMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"env":             map[bool]string{true: "production", false: "development"}[app.IsProduction],
		"pool":            app.Pool,
		"code_length":     app.CodeLength,
		"active_sessions": sessionCount,
		"active_limiters": limiterCount,
		"memory_alloc_mb": m.Alloc / 1024 / 1024,
		"memory_sys_mb":   m.Sys / 1024 / 1024,
		"memory_gc_count": m.NumGC,
		"uptime":          util.FormatUptime(uptime),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

// BuildGameView renders a game for the client. The code is only included
// once the game is solved or revealed. The caller must hold gameState.Mu.
func BuildGameView(gameState *models.GameState) models.GameView {
	s := gameState.Session
	view := models.GameView{
		Pool:       s.Pool(),
		Length:     s.Length(),
		GuessCount: s.GuessCount(),
		Guesses:    lo.Map(s.History(), func(g game.ScoredGuess, _ int) models.GuessView { return toGuessView(g) }),
		Solved:     gameState.Solved,
		Revealed:   gameState.Revealed,
	}
	if gameState.Over() {
		view.Code = s.Code()
	}
	return view
}

// NormalizeGuess trims surrounding whitespace and upper-cases the guess when
// the pool has no lower-case letters.
func NormalizeGuess(input, pool string) string {
	guess := strings.TrimSpace(input)
	if !strings.ContainsFunc(pool, unicode.IsLower) {
		guess = strings.ToUpper(guess)
	}
	return guess
}

func toGuessView(g game.ScoredGuess) models.GuessView {
	return models.GuessView{Text: g.Text, Correct: g.Correct, Close: g.Close}
}

// guessErrorResponse maps a rejected guess to its error payload. Text is the
// normalized guess that was validated; Input is what the client sent.
func guessErrorResponse(err error, input string) models.ErrorResponse {
	var lenErr *game.InvalidGuessLengthError
	if errors.As(err, &lenErr) {
		return models.ErrorResponse{
			Error:    constants.ErrorCodeInvalidLength,
			Message:  lenErr.Error(),
			Required: lo.ToPtr(lenErr.Required),
			Provided: lo.ToPtr(lenErr.Provided),
			Input:    input,
		}
	}
	var charErr *game.InvalidGuessCharacterError
	if errors.As(err, &charErr) {
		return models.ErrorResponse{
			Error:   constants.ErrorCodeInvalidCharacter,
			Message: charErr.Error(),
			Pool:    charErr.Pool,
			Text:    charErr.Text,
			Input:   input,
		}
	}
	return models.ErrorResponse{Error: constants.ErrorCodeBadRequest, Message: err.Error(), Input: input}
}

func loadGame(app *models.App, c *gin.Context) (*models.GameState, bool) {
	sessionID := session.GetOrCreateSession(app, c)
	gameState, err := session.GetGameState(app, c.Request.Context(), sessionID)
	if err != nil {
		internalError(c, err)
		return nil, false
	}
	return gameState, true
}

func internalError(c *gin.Context, err error) {
	util.RequestLogger(c.Request.Context()).Error().Err(err).Msg("Failed to create game")
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}
