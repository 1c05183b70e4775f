package game

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidGuessLength    = errors.New("invalid guess length")
	ErrInvalidGuessCharacter = errors.New("invalid guess character")
	ErrInvalidLength         = errors.New("game: length must be at least 1")
)

type InvalidGuessLengthError struct {
	Required int
	Provided int
}

func (e *InvalidGuessLengthError) Error() string {
	return fmt.Sprintf("invalid guess length: required=%d, provided=%d", e.Required, e.Provided)
}

func (e *InvalidGuessLengthError) Is(target error) bool {
	return target == ErrInvalidGuessLength
}

type InvalidGuessCharacterError struct {
	Pool string
	Text string
}

func (e *InvalidGuessCharacterError) Error() string {
	return fmt.Sprintf("guess includes invalid characters: required=%s; provided=%s", e.Pool, e.Text)
}

func (e *InvalidGuessCharacterError) Is(target error) bool {
	return target == ErrInvalidGuessCharacter
}
