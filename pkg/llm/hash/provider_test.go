package hash

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/kart-io/docqa/pkg/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func l2(a, b []float32) float64 {
	var s float64
	for i := range a {
		d := float64(a[i] - b[i])
		s += d * d
	}
	return math.Sqrt(s)
}

func TestEmbedDeterministicAndNormalized(t *testing.T) {
	p := New(0)
	require.Equal(t, DefaultDimension, p.Dimension())

	v1, err := p.EmbedSingle(context.Background(), "The quick brown fox")
	require.NoError(t, err)
	v2, err := p.EmbedSingle(context.Background(), "the QUICK brown fox!")
	require.NoError(t, err)

	assert.Len(t, v1, DefaultDimension)
	assert.InDelta(t, 0, l2(v1, v2), 1e-6, "case and punctuation must not matter")

	var norm float64
	for _, v := range v1 {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1, norm, 1e-5)
}

func TestEmbedSimilarity(t *testing.T) {
	p := New(DefaultDimension)
	vecs, err := p.Embed(context.Background(), []string{
		"invoice total amount due in march",
		"the total amount due on the invoice",
		"mountain climbing equipment checklist",
	})
	require.NoError(t, err)
	assert.Less(t, l2(vecs[0], vecs[1]), l2(vecs[0], vecs[2]))
}

func TestEmptyText(t *testing.T) {
	v, err := New(8).EmbedSingle(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 8), v)
}

func TestRegistered(t *testing.T) {
	p, err := llm.NewEmbeddingProvider(ProviderName, map[string]any{"dimension": 16})
	require.NoError(t, err)
	assert.Equal(t, "hash", p.Name())
	assert.Equal(t, "feature-hash-16", p.Model())
}

func TestEmbedHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(8).Embed(ctx, []string{"a"})
	assert.ErrorIs(t, err, context.Canceled)
}
