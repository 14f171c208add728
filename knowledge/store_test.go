package knowledge

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/poiesic/pairreader/ai/mock"
	"github.com/poiesic/pairreader/core"
	"github.com/poiesic/pairreader/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBase(t *testing.T, embedder *mock.MockEmbedder, opts ...Option) *Base {
	t.Helper()
	docs, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	base, err := NewBase(docs, embedder, opts...)
	require.NoError(t, err)
	return base
}

// directionEmbedder maps texts starting with "east" and "north" to fixed directions.
func directionEmbedder() *mock.MockEmbedder {
	return mock.NewMockEmbedder().WithEmbedTextFunc(func(_ context.Context, text string) ([]float32, error) {
		switch {
		case strings.HasPrefix(text, "east"):
			return []float32{1, 0}, nil
		case strings.HasPrefix(text, "north"):
			return []float32{0, 1}, nil
		default:
			return []float32{-1, -1}, nil
		}
	})
}

func TestNewBase_RequiresDependencies(t *testing.T) {
	docs, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	_, err = NewBase(nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrRepositoryRequired)
	_, err = NewBase(docs, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
	_, err = NewBase(docs, mock.NewMockEmbedder(), WithClusterer(nil))
	assert.ErrorIs(t, err, ErrClustererRequired)
}

func TestBase_AddAndCount(t *testing.T) {
	base := newTestBase(t, mock.NewMockEmbedder())
	ctx := context.Background()

	n, err := base.Add(ctx, []string{"alpha", "  ", "beta", ""}, map[string]string{"source": "notes.txt"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := base.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	docs, err := base.Documents(ctx, []core.ID{core.IDFromContent("alpha")})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "notes.txt", docs[0].Metadata["source"])
	assert.Len(t, docs[0].Vector, mock.DefaultDimensions)
}

func TestBase_AddSharedChunkKeepsLatestSource(t *testing.T) {
	base := newTestBase(t, mock.NewMockEmbedder())
	ctx := context.Background()

	_, err := base.Add(ctx, []string{"shared intro", "only in a"}, map[string]string{"fname": "a.md"})
	require.NoError(t, err)
	_, err = base.Add(ctx, []string{"shared intro"}, map[string]string{"fname": "b.md"})
	require.NoError(t, err)

	count, err := base.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "identical chunks are stored once")

	docs, err := base.Documents(ctx, []core.ID{core.IDFromContent("shared intro"), core.IDFromContent("only in a")})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b.md", docs[0].Metadata["fname"])
	assert.Equal(t, "a.md", docs[1].Metadata["fname"])
}

func TestBase_AddEmbedFailure(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, core.NewServiceError("embed", errors.New("connection refused"))
	}
	base := newTestBase(t, embedder)

	_, err := base.Add(context.Background(), []string{"alpha"}, nil)
	assert.True(t, core.IsServiceError(err))
}

func TestBase_Reset(t *testing.T) {
	base := newTestBase(t, mock.NewMockEmbedder())
	ctx := context.Background()

	_, err := base.Add(ctx, []string{"alpha", "beta"}, nil)
	require.NoError(t, err)
	require.NoError(t, base.Reset(ctx))

	count, err := base.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBase_Query(t *testing.T) {
	base := newTestBase(t, directionEmbedder())
	ctx := context.Background()

	_, err := base.Add(ctx, []string{"east one", "east two"}, map[string]string{"source": "a.txt"})
	require.NoError(t, err)
	_, err = base.Add(ctx, []string{"north one"}, map[string]string{"source": "b.txt"})
	require.NoError(t, err)

	t.Run("concatenated per text", func(t *testing.T) {
		passages, err := base.Query(ctx, []string{"east?", "north?"}, 1, nil)
		require.NoError(t, err)
		require.Len(t, passages, 2)
		assert.True(t, strings.HasPrefix(passages[0].Text, "east"))
		assert.Equal(t, "north one", passages[1].Text)
		assert.InDelta(t, 1.0, passages[1].Score, 1e-6)
	})

	t.Run("metadata filter", func(t *testing.T) {
		passages, err := base.Query(ctx, []string{"east?"}, 5, &Filter{Metadata: map[string]string{"source": "b.txt"}})
		require.NoError(t, err)
		require.Len(t, passages, 1)
		assert.Equal(t, "north one", passages[0].Text)
	})

	t.Run("contains filters", func(t *testing.T) {
		passages, err := base.Query(ctx, []string{"east?"}, 5, &Filter{Contains: []string{"east"}, NotContains: []string{"two"}})
		require.NoError(t, err)
		require.Len(t, passages, 1)
		assert.Equal(t, "east one", passages[0].Text)
	})

	t.Run("invalid k", func(t *testing.T) {
		_, err := base.Query(ctx, []string{"east?"}, 0, nil)
		assert.ErrorIs(t, err, ErrInvalidParams)
	})
}

func TestBase_Sample(t *testing.T) {
	ctx := context.Background()

	t.Run("empty corpus", func(t *testing.T) {
		base := newTestBase(t, mock.NewMockEmbedder())
		_, err := base.Sample(ctx, 5, 0.1)
		assert.ErrorIs(t, err, core.ErrEmptyCorpus)
	})

	chunks := make([]string, 20)
	for i := range chunks {
		chunks[i] = strings.Repeat("x", i+1)
	}

	base := newTestBase(t, mock.NewMockEmbedder(), WithRand(rand.New(rand.NewPCG(1, 2))))
	_, err := base.Add(ctx, chunks, nil)
	require.NoError(t, err)

	tests := []struct {
		name     string
		count    int
		fraction float64
		want     int
	}{
		{"exact count wins", 3, 0.9, 3},
		{"fraction rounds up", 0, 0.11, 3},
		{"count capped at size", 50, 0, 20},
		{"fraction capped at size", 0, 1.0, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := base.Sample(ctx, tt.count, tt.fraction)
			require.NoError(t, err)
			assert.Len(t, ids, tt.want)

			seen := make(map[core.ID]bool)
			for i, id := range ids {
				assert.False(t, seen[id], "sample must not repeat documents")
				seen[id] = true
				if i > 0 {
					assert.Less(t, ids[i-1], id, "sample keeps store order")
				}
			}
		})
	}
}

func TestSampleSize(t *testing.T) {
	assert.Equal(t, 1, SampleSize(10, 0, 0.01))
	assert.Equal(t, 10, SampleSize(10, 0, 1))
	assert.Equal(t, 4, SampleSize(10, 4, 0.5))
	assert.Equal(t, 10, SampleSize(10, 11, 0))
	assert.Equal(t, 0, SampleSize(10, 0, 0))
}

func TestBase_Cluster(t *testing.T) {
	base := newTestBase(t, directionEmbedder())
	ctx := context.Background()

	_, err := base.Add(ctx, []string{"east 1", "east 2", "east 3", "north 1", "north 2", "north 3", "stray"}, nil)
	require.NoError(t, err)

	ids, err := base.Sample(ctx, 0, 1.0)
	require.NoError(t, err)

	assignment, err := base.Cluster(ctx, ids, ClusterParams{Granularity: 0.05})
	require.NoError(t, err)
	require.Len(t, assignment.Clusters, 2)
	assert.Equal(t, 0, assignment.Clusters[0].Label)
	assert.Equal(t, 1, assignment.Clusters[1].Label)
	assert.Len(t, assignment.Clusters[0].Members, 3)
	assert.Len(t, assignment.Clusters[1].Members, 3)
	assert.Equal(t, []core.ID{core.IDFromContent("stray")}, assignment.Noise)

	_, err = base.Cluster(ctx, ids, ClusterParams{})
	assert.ErrorIs(t, err, ErrInvalidParams)
}

type fixedClusterer struct{}

func (fixedClusterer) Cluster(vectors [][]float32, _ ClusterParams) ([][]int, []int, error) {
	all := make([]int, len(vectors))
	for i := range all {
		all[i] = i
	}
	return [][]int{all}, nil, nil
}

func TestBase_CustomClusterer(t *testing.T) {
	base := newTestBase(t, mock.NewMockEmbedder(), WithClusterer(fixedClusterer{}))
	ctx := context.Background()

	_, err := base.Add(ctx, []string{"a", "b", "c"}, nil)
	require.NoError(t, err)
	ids, err := base.Sample(ctx, 3, 0)
	require.NoError(t, err)

	assignment, err := base.Cluster(ctx, ids, ClusterParams{MinSize: 1})
	require.NoError(t, err)
	require.Len(t, assignment.Clusters, 1)
	assert.Equal(t, ids, assignment.Clusters[0].Members)
	assert.Equal(t, 1, assignment.Len())
}

func TestFilterMatch(t *testing.T) {
	doc := &core.Document{Text: "The quick brown fox", Metadata: map[string]string{"source": "fox.txt"}}

	var nilFilter *Filter
	assert.True(t, nilFilter.Match(doc))
	assert.True(t, (&Filter{}).Match(doc))
	assert.True(t, (&Filter{Contains: []string{"quick", "fox"}}).Match(doc))
	assert.False(t, (&Filter{Contains: []string{"Quick"}}).Match(doc))
	assert.False(t, (&Filter{NotContains: []string{"brown"}}).Match(doc))
	assert.False(t, (&Filter{Metadata: map[string]string{"source": "dog.txt"}}).Match(doc))
	assert.False(t, (&Filter{Metadata: map[string]string{"page": "1"}}).Match(doc))
}
