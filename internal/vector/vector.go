// Package vector derives fixed-length content vectors from project
// attributes and compares them by cosine similarity. Encoding is a hashed
// bag of words: deliberately simple, deterministic, and dependency-free,
// trading hash-collision accuracy for a fixed memory footprint.
package vector

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Dimensions is the fixed vector length. Every stored embedding has exactly
// this many components.
const Dimensions = 384

// ErrDimensionMismatch is returned when two vectors of different lengths
// are compared. With a single fixed Dimensions this should be unreachable.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Encode builds an L2-normalized vector from a project's textual and
// categorical attributes. It is pure: identical inputs always produce an
// identical vector. Token hash collisions are accepted.
func Encode(title, description string, tags, techTags []string) []float32 {
	vec := make([]float32, Dimensions)

	for _, token := range Tokenize(title, description, tags, techTags) {
		vec[bucket(token)]++
	}

	return normalize(vec)
}

// Tokenize flattens the attribute set into a single lowercase token list.
func Tokenize(title, description string, tags, techTags []string) []string {
	var tokens []string
	appendWords := func(s string) {
		for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}) {
			tokens = append(tokens, w)
		}
	}

	for _, t := range tags {
		appendWords(t)
	}
	for _, t := range techTags {
		appendWords(t)
	}
	appendWords(title)
	appendWords(description)

	return tokens
}

// bucket maps a token to a vector index via a stable 32-bit hash.
func bucket(token string) int {
	h := fnv.New32a()
	h.Write([]byte(token))
	return int(h.Sum32() % Dimensions)
}

// normalize scales the vector to unit length. A zero vector stays zero.
func normalize(vec []float32) []float32 {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return vec
	}

	norm := float32(math.Sqrt(sumSquares))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// Cosine computes the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical direction;
// symmetric in its arguments. Either vector being zero yields 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Serialize converts a float32 vector to bytes for SQLite storage
// Uses little-endian encoding for portability
func Serialize(vec []float32) []byte {
	buf := make([]byte, len(vec)*4) // 4 bytes per float32
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// Deserialize converts bytes back to a float32 vector
func Deserialize(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}

	vec := make([]float32, len(data)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec
}
