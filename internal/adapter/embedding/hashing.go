package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"vidsearch/internal/adapter/analyzer"
	"vidsearch/internal/domain"
)

const (
	// HashingModelName names the built-in local model.
	HashingModelName = "hashing-v1"

	termWeight    = 1.0
	bigramWeight  = 0.5
	trigramWeight = 0.35
)

// HashingEmbedder is a local, dependency-free embedding model. It projects
// stemmed terms, adjacent term pairs and character trigrams into a fixed
// number of buckets with signed feature hashing, then L2-normalises the
// result. Output is a pure function of the input text.
//
// Text made only of stopwords and one-letter words falls back to its raw
// lowercase words. Text with no words at all is rejected with
// domain.ErrInvalidInput; no zero vector is ever returned.
type HashingEmbedder struct {
	dimension int
	tokenizer *analyzer.Tokenizer
}

// NewHashingEmbedder creates a hashing model producing vectors of the given dimension.
func NewHashingEmbedder(dimension int) *HashingEmbedder {
	return &HashingEmbedder{
		dimension: dimension,
		tokenizer: analyzer.NewTokenizer(true),
	}
}

func (e *HashingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.embed(text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

func (e *HashingEmbedder) embed(text string) ([]float32, error) {
	acc := make([]float64, e.dimension)
	tokens := e.tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		tokens = e.tokenizer.Words(text)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: text has no words", domain.ErrInvalidInput)
	}

	for i, tok := range tokens {
		e.add(acc, "t:"+tok, termWeight)
		if i > 0 {
			e.add(acc, "b:"+tokens[i-1]+" "+tok, bigramWeight)
		}
		padded := "^" + tok + "$"
		runes := []rune(padded)
		for j := 0; j+3 <= len(runes); j++ {
			e.add(acc, "c:"+string(runes[j:j+3]), trigramWeight)
		}
	}

	var sum float64
	for _, x := range acc {
		sum += x * x
	}
	if sum == 0 {
		return nil, fmt.Errorf("%w: features of %q cancelled out", domain.ErrInvalidInput, text)
	}
	vec := make([]float32, e.dimension)
	n := math.Sqrt(sum)
	for i, x := range acc {
		vec[i] = float32(x / n)
	}
	return vec, nil
}

// add hashes feature into a bucket; the top hash bit picks the sign so
// collisions cancel out on average.
func (e *HashingEmbedder) add(acc []float64, feature string, weight float64) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(e.dimension))
	if sum>>63 == 1 {
		weight = -weight
	}
	acc[bucket] += weight
}

func (e *HashingEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashingEmbedder) ModelName() string {
	return HashingModelName
}
