// Package hashing provides a local, deterministic Embedder.
//
// Texts are tokenised, and each token and character trigram is hashed into
// a fixed number of buckets with a signed weight. The vector is L2
// normalised, so cosine similarity reduces to a dot product. Related texts
// that share vocabulary or spelling land near each other without any model.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/Odushhh/tech-support-chatbot/internal/core/ports/driven"
)

// Ensure Embedder implements the interface.
var _ driven.Embedder = (*Embedder)(nil)

// DefaultDimensions is the default vector size.
const DefaultDimensions = 256

const (
	tokenWeight   = 1.0
	trigramWeight = 0.35
)

// Embedder hashes tokens into a fixed-size vector.
type Embedder struct {
	dimensions int
}

// New creates a hashing embedder. dimensions <= 0 uses DefaultDimensions.
func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Embedder{dimensions: dimensions}
}

// Name identifies the model and its size.
func (e *Embedder) Name() string {
	return fmt.Sprintf("hashing-%d", e.dimensions)
}

// Dimensions returns the vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Embed returns one vector per text. Empty texts yield zero vectors.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *Embedder) embed(text string) []float32 {
	vec := make([]float64, e.dimensions)
	for _, tok := range Tokenize(text) {
		e.add(vec, "t:"+tok, tokenWeight)
		padded := "^" + tok + "$"
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			e.add(vec, "g:"+string(runes[i:i+3]), trigramWeight)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, e.dimensions)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func (e *Embedder) add(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dimensions))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

// Tokenize lowercases text and splits it on anything that is not a letter,
// digit or underscore.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}
