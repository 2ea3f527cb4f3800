package lzf

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecompress_Literals(t *testing.T) {
	out, err := Decompress([]byte{2, 'a', 'b', 'c'})
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), out)
}

func TestDecompress_OverlappingReference(t *testing.T) {
	// "a" then a reference of length 5 at distance 1: "aaaaaa".
	out, err := Decompress([]byte{0, 'a', 3 << 5, 0})
	require.NoError(t, err)
	assert.Equal(t, []byte("aaaaaa"), out)
}

func TestDecompress_ExtendedLength(t *testing.T) {
	// Length 7+3+2 = 12 copied from distance 1.
	out, err := Decompress([]byte{0, 'z', 7 << 5, 3, 0})
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte("z"), 13), out)
}

func TestDecompress_Empty(t *testing.T) {
	out, err := Decompress(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDecompress_Corrupt(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"literal overrun", []byte{5, 'a'}},
		{"reference before start", []byte{1 << 5, 0}},
		{"missing offset byte", []byte{0, 'a', 1 << 5}},
		{"missing length byte", []byte{0, 'a', 7 << 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decompress(tt.input)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestCompress_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	random := make([]byte, 5000)
	rng.Read(random)

	inputs := map[string][]byte{
		"empty":      {},
		"short":      []byte("ab"),
		"repetitive": bytes.Repeat([]byte("MGSV save data "), 400),
		"long run":   bytes.Repeat([]byte{0}, 10000),
		"random":     random,
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			packed := Compress(input)
			out, err := Decompress(packed)
			require.NoError(t, err)
			assert.Equal(t, len(input), len(out))
			assert.True(t, bytes.Equal(input, out))
		})
	}
}

func TestCompress_ShrinksRepetitiveInput(t *testing.T) {
	input := bytes.Repeat([]byte("abcdefgh"), 1000)
	assert.Less(t, len(Compress(input)), len(input)/10)
}
