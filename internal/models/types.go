package models

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/CodeAndHammer/codebreaker/internal/code"
	"github.com/CodeAndHammer/codebreaker/internal/game"
)

// GameState is one player's game. Mu serializes guess, restart and reveal
// on the same session.
type GameState struct {
	Mu             sync.Mutex
	Session        *game.Session
	Solved         bool
	Revealed       bool
	LastAccessTime time.Time
}

func (g *GameState) Over() bool {
	return g.Solved || g.Revealed
}

type RateLimiterEntry struct {
	Limiter    *rate.Limiter
	LastAccess time.Time
}

type App struct {
	Pool           string
	CodeLength     int
	NewSource      func() code.RandomSource
	GameSessions   map[string]*GameState
	SessionMutex   sync.RWMutex
	LimiterMap     map[string]*RateLimiterEntry
	LimiterMutex   sync.RWMutex
	IsProduction   bool
	StartTime      time.Time
	CookieMaxAge   time.Duration
	RateLimitRPS   int
	RateLimitBurst int
	RateLimiterTTL time.Duration
	SessionTimeout time.Duration
}

type GuessView struct {
	Text    string `json:"text"`
	Correct int    `json:"correct"`
	Close   int    `json:"close"`
}

type GameView struct {
	Pool       string      `json:"pool"`
	Length     int         `json:"length"`
	GuessCount int         `json:"guessCount"`
	Guesses    []GuessView `json:"guesses"`
	Solved     bool        `json:"solved"`
	Revealed   bool        `json:"revealed"`
	Code       string      `json:"code,omitempty"`
}

type GuessResponse struct {
	Guess GuessView `json:"guess"`
	Game  GameView  `json:"game"`
}

type ErrorResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message,omitempty"`
	Required *int   `json:"required,omitempty"`
	Provided *int   `json:"provided,omitempty"`
	Pool     string `json:"pool,omitempty"`
	Text     string `json:"text,omitempty"`
	Input    string `json:"input,omitempty"`
}
