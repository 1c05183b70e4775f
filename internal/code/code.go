package code

import (
	"crypto/rand"
	"errors"
	"math/big"
)

var (
	ErrEmptyPool      = errors.New("code: pool must not be empty")
	ErrNegativeLength = errors.New("code: length must not be negative")
	ErrNilSource      = errors.New("code: random source is nil")
)

// RandomSource yields uniformly distributed integers in [0, n).
// *math/rand.Rand satisfies it.
type RandomSource interface {
	Intn(n int) int
}

// CryptoSource draws from crypto/rand.
type CryptoSource struct{}

func (CryptoSource) Intn(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("code: crypto/rand failed: " + err.Error())
	}
	return int(v.Int64())
}

// Code is an immutable secret sequence drawn from a character pool.
type Code struct {
	secret []rune
}

func New(pool string, length int, rng RandomSource) (*Code, error) {
	chars := []rune(pool)
	if len(chars) == 0 {
		return nil, ErrEmptyPool
	}
	if length < 0 {
		return nil, ErrNegativeLength
	}
	if rng == nil {
		return nil, ErrNilSource
	}

	secret := make([]rune, length)
	for i := range secret {
		secret[i] = chars[rng.Intn(len(chars))]
	}
	return &Code{secret: secret}, nil
}

func (c *Code) String() string {
	return string(c.secret)
}

func (c *Code) Len() int {
	return len(c.secret)
}

func (c *Code) Score(candidate string) (correct, close int) {
	return Score(c.secret, []rune(candidate))
}
