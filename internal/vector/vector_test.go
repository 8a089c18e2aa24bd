package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDeterministic(t *testing.T) {
	a := Encode("Realtime Chat", "A websocket chat server", []string{"go", "websockets"}, []string{"go"})
	b := Encode("Realtime Chat", "A websocket chat server", []string{"go", "websockets"}, []string{"go"})

	require.Len(t, a, Dimensions)
	assert.Equal(t, a, b)
}

func TestEncodeUnitLength(t *testing.T) {
	vec := Encode("Portfolio Site", "A personal portfolio", []string{"react", "node"}, nil)

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-6)
}

func TestEncodeEmptyInputStaysZero(t *testing.T) {
	vec := Encode("", "", nil, nil)

	require.Len(t, vec, Dimensions)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestEncodeSharedTokensOverlap(t *testing.T) {
	a := Encode("", "", []string{"react", "node"}, nil)
	b := Encode("", "", []string{"react", "vue"}, nil)

	score, err := Cosine(a, b)
	require.NoError(t, err)
	assert.Greater(t, score, 0.0)
}

func TestTokenizeLowercasesAndSplits(t *testing.T) {
	tokens := Tokenize("Web-Sockets Demo", "fast & simple", []string{"Go"}, nil)
	assert.Equal(t, []string{"go", "web", "sockets", "demo", "fast", "simple"}, tokens)
}

func TestCosineSymmetric(t *testing.T) {
	a := Encode("alpha project", "first", []string{"go"}, nil)
	b := Encode("beta project", "second", []string{"rust"}, nil)

	ab, err := Cosine(a, b)
	require.NoError(t, err)
	ba, err := Cosine(b, a)
	require.NoError(t, err)

	assert.InDelta(t, ab, ba, 1e-9)
}

func TestCosineIdenticalDirection(t *testing.T) {
	a := Encode("same", "thing", []string{"go"}, nil)

	score, err := Cosine(a, a)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-6)
}

func TestCosineDimensionMismatch(t *testing.T) {
	_, err := Cosine(make([]float32, Dimensions), make([]float32, Dimensions-1))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCosineZeroVector(t *testing.T) {
	zero := make([]float32, Dimensions)
	a := Encode("nonzero", "", []string{"go"}, nil)

	score, err := Cosine(a, zero)
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestSerializeRoundTrip(t *testing.T) {
	vec := Encode("roundtrip", "serialization check", []string{"go", "sqlite"}, nil)

	got := Deserialize(Serialize(vec))
	assert.Equal(t, vec, got)
}

func TestDeserializeRejectsBadLength(t *testing.T) {
	assert.Nil(t, Deserialize(nil))
	assert.Nil(t, Deserialize([]byte{1, 2, 3}))
}
