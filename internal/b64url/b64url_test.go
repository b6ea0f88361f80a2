package b64url

import (
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	// Cover length 0 and every remainder mod 3.
	for size := 0; size <= 66; size++ {
		b := make([]byte, size)
		_, err := rand.Read(b)
		require.NoError(t, err)

		encoded := Encode(b)
		decoded, err := Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, b, decoded, "round trip failed for length %d", size)
	}
}

func TestEncodeIsURLSafe(t *testing.T) {
	b := make([]byte, 256)
	for i := range b {
		b[i] = byte(i)
	}

	encoded := Encode(b)
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")
	assert.NotContains(t, encoded, "=")
}

func TestEncodeEmpty(t *testing.T) {
	assert.Equal(t, "", Encode(nil))
	assert.Equal(t, "", Encode([]byte{}))
}

func TestDecodeRejectsInvalidInput(t *testing.T) {
	for _, input := range []string{
		"abc+",   // standard alphabet plus
		"ab/c",   // standard alphabet slash
		"abcd==", // explicit padding
		"a b",    // whitespace
		strings.Repeat("A", 3) + "\x00",
	} {
		_, err := Decode(input)
		assert.Error(t, err, "input %q should not decode", input)
	}
}
