package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomKeyGeneratorLength(t *testing.T) {
	gen := NewKeyGenerator()
	key, err := gen.Generate()
	require.NoError(t, err)
	assert.Len(t, key, KeyLength)
}

func TestRandomKeyGeneratorAlphabet(t *testing.T) {
	gen := NewKeyGenerator()
	for i := 0; i < 50; i++ {
		key, err := gen.Generate()
		require.NoError(t, err)
		for _, ch := range key {
			isUpper := ch >= 'A' && ch <= 'Z'
			isLower := ch >= 'a' && ch <= 'z'
			isDigit := ch >= '0' && ch <= '9'
			assert.True(t, isUpper || isLower || isDigit,
				"key %q contains %q outside the alphanumeric alphabet", key, ch)
		}
	}
}

func TestRandomKeyGeneratorUniqueness(t *testing.T) {
	gen := NewKeyGenerator()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		key, err := gen.Generate()
		require.NoError(t, err)
		assert.False(t, seen[key], "duplicate key %q after %d draws", key, i)
		seen[key] = true
	}
}
