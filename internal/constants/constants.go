package constants

const (
	DefaultPool   = "ABCDEF"
	DefaultLength = 4
)

const (
	SessionCookieName = "codebreaker_session"
	CSRFCookieName    = "csrf_token"
	CSRFHeaderName    = "X-CSRF-Token"
)

const (
	RouteHome      = "/"
	RouteNewGame   = "/new-game"
	RouteGuess     = "/guess"
	RouteRestart   = "/restart"
	RouteReveal    = "/reveal"
	RouteGameState = "/game-state"
	RouteHealthz   = "/healthz"
)

const (
	ErrorCodeBadRequest       = "bad_request"
	ErrorCodeGameOver         = "game_over"
	ErrorCodeInvalidLength    = "invalid_length"
	ErrorCodeInvalidCharacter = "invalid_character"
	ErrorCodeRateLimited      = "rate_limited"
	ErrorCodeInvalidCSRF      = "invalid_csrf_token"
)

type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
)
