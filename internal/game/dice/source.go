package dice

import (
	"crypto/rand"
	"math/big"
)

// Source produces uniformly distributed ints.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	Intn(n int) int
}

// cryptoSource implements Source using crypto/rand.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is in [0, n).
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Intn returns a cryptographically secure random int in [0, n).
//
// Precondition: n > 0. Panics with "dice: Intn called with n <= 0" if n <= 0.
func (c *cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("dice: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// maxSeed keeps seeds inside the positive int32 range so they survive any
// JSON consumer that treats numbers as signed 32-bit.
const maxSeed = 0x7fffffff

// NewState seeds a fresh battle RNG from src.
//
// Precondition: src must be non-nil.
// Postcondition: Seed is in [1, 0x7fffffff]; Cursor == 0.
func NewState(src Source) State {
	return State{Seed: uint32(src.Intn(maxSeed-1)) + 1}
}
