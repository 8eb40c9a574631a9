package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsearch/internal/domain"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func embedOne(t *testing.T, e *HashingEmbedder, text string) []float32 {
	t.Helper()
	vectors, err := e.Embed(context.Background(), []string{text})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	return vectors[0]
}

func TestHashingEmbedder_Deterministic(t *testing.T) {
	a := NewHashingEmbedder(512)
	b := NewHashingEmbedder(512)

	text := "A chef slices onions on a wooden board while explaining the recipe."
	assert.Equal(t, embedOne(t, a, text), embedOne(t, a, text))
	assert.Equal(t, embedOne(t, a, text), embedOne(t, b, text))
}

func TestHashingEmbedder_DimensionAndNorm(t *testing.T) {
	for _, dim := range []int{8, 384, 512} {
		e := NewHashingEmbedder(dim)
		vec := embedOne(t, e, "the quick brown fox jumps over the lazy dog")
		require.Len(t, vec, dim)

		var sum float64
		for _, x := range vec {
			sum += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	}
}

func TestHashingEmbedder_RejectsTextWithoutWords(t *testing.T) {
	e := NewHashingEmbedder(16)

	for _, text := range []string{"", "   ", "?! ... --"} {
		vectors, err := e.Embed(context.Background(), []string{"fine words", text})
		assert.Nil(t, vectors, "text %q", text)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "text %q", text)
	}
}

func TestHashingEmbedder_StopwordOnlyTextIsNotZero(t *testing.T) {
	e := NewHashingEmbedder(512)

	hamlet := embedOne(t, e, "to be or not to be")
	filler := embedOne(t, e, "um yeah okay so really")
	short := embedOne(t, e, "I do it")

	for _, vec := range [][]float32{hamlet, filler, short} {
		var sum float64
		for _, x := range vec {
			sum += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	}
	assert.InDelta(t, 1.0, cosine(hamlet, embedOne(t, e, "To be, or not to be.")), 1e-6)
	assert.Less(t, cosine(hamlet, filler), 0.5)
	assert.Less(t, cosine(hamlet, short), 0.5)
}

func TestHashingEmbedder_SemanticOrdering(t *testing.T) {
	e := NewHashingEmbedder(512)

	cats := embedOne(t, e, "cats are great pets")
	dogs := embedOne(t, e, "dogs are loyal companions")
	query := embedOne(t, e, "feline pets")

	assert.Greater(t, cosine(query, cats), cosine(query, dogs))
}

func TestHashingEmbedder_SharedVocabularyScoresHigher(t *testing.T) {
	e := NewHashingEmbedder(512)

	cooking := embedOne(t, e, "cooking pasta with tomato sauce in the kitchen")
	football := embedOne(t, e, "football match highlights with a late goal")
	query := embedOne(t, e, "pasta recipe kitchen")

	assert.Greater(t, cosine(query, cooking), cosine(query, football))
}

func TestHashingEmbedder_CancelledContext(t *testing.T) {
	e := NewHashingEmbedder(16)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Embed(ctx, []string{"hello"})
	assert.ErrorIs(t, err, context.Canceled)
}
