package entitlement

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// KeyLength is the fixed length of every issued access key.
const KeyLength = 14

// keyAlphabet is the full alphanumeric alphabet keys are drawn from.
const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// KeyGenerator produces opaque access keys. The service layer owns
// uniqueness: it retries on collision against the store.
type KeyGenerator interface {
	Generate() (string, error)
}

// RandomKeyGenerator draws fixed-length keys from crypto/rand. The keys are
// not a cryptographic credential scheme, but they must not be guessable or
// sequential, and crypto/rand avoids the seeding pitfalls of math/rand.
type RandomKeyGenerator struct {
	length int
}

// NewKeyGenerator returns a generator producing keys of the standard length.
func NewKeyGenerator() *RandomKeyGenerator {
	return &RandomKeyGenerator{length: KeyLength}
}

// Generate returns one freshly drawn key.
func (g *RandomKeyGenerator) Generate() (string, error) {
	max := big.NewInt(int64(len(keyAlphabet)))
	buf := make([]byte, g.length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to draw key material: %w", err)
		}
		buf[i] = keyAlphabet[n.Int64()]
	}
	return string(buf), nil
}
