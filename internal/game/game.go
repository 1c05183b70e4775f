package game

import (
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/CodeAndHammer/codebreaker/internal/code"
)

type ScoredGuess struct {
	Text    string
	Correct int
	Close   int
}

func (g ScoredGuess) String() string {
	return fmt.Sprintf("{text: %q, correct: %d, close: %d}", g.Text, g.Correct, g.Close)
}

// Solved reports whether every position of a code of the given length matched.
func (g ScoredGuess) Solved(length int) bool {
	return length > 0 && g.Correct == length
}

// Session is one secret code plus the guesses scored against it. It is not
// safe for concurrent use.
type Session struct {
	pool    string
	poolSet map[rune]struct{}
	length  int
	code    *code.Code
	history []ScoredGuess
}

func NewSession(pool string, length int, rng code.RandomSource) (*Session, error) {
	if length < 1 {
		return nil, ErrInvalidLength
	}
	chars := lo.Uniq([]rune(pool))
	secret, err := code.New(string(chars), length, rng)
	if err != nil {
		return nil, err
	}
	return &Session{
		pool:    string(chars),
		poolSet: lo.SliceToMap(chars, func(ch rune) (rune, struct{}) { return ch, struct{}{} }),
		length:  length,
		code:    secret,
		history: []ScoredGuess{},
	}, nil
}

func (s *Session) Guess(text string) (ScoredGuess, error) {
	if n := utf8.RuneCountInString(text); n != s.length {
		return ScoredGuess{}, &InvalidGuessLengthError{Required: s.length, Provided: n}
	}
	for _, ch := range text {
		if _, ok := s.poolSet[ch]; !ok {
			return ScoredGuess{}, &InvalidGuessCharacterError{Pool: s.pool, Text: text}
		}
	}

	correct, close := s.code.Score(text)
	guess := ScoredGuess{Text: text, Correct: correct, Close: close}
	s.history = append(s.history, guess)
	return guess, nil
}

// Restart clears the guess history. The secret code is kept.
func (s *Session) Restart() {
	s.history = s.history[:0]
}

func (s *Session) Pool() string {
	return s.pool
}

func (s *Session) Length() int {
	return s.length
}

func (s *Session) History() []ScoredGuess {
	return slices.Clone(s.history)
}

func (s *Session) GuessCount() int {
	return len(s.history)
}

// Code returns the display form of the secret.
func (s *Session) Code() string {
	return s.code.String()
}
