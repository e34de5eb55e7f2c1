package vectorstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsDigest/internal/config"
	"NewsDigest/internal/domain"
	"NewsDigest/internal/infrastructure/storage"
)

// axisEmbedder maps known texts onto unit axes so nearest neighbours are predictable.
type axisEmbedder map[string][]float32

func (e axisEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func newTestStore(t *testing.T, emb axisEmbedder) *Store {
	t.Helper()

	dsn := os.Getenv("NEWSDIGEST_TEST_DSN")
	if dsn == "" {
		t.Skip("NEWSDIGEST_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := storage.NewPool(ctx, config.DatabaseConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	table := fmt.Sprintf("headlines_test_%d", time.Now().UnixNano())
	store := NewStore(pool, emb, config.CorpusConfig{Table: table, Dimensions: 3})
	require.NoError(t, store.EnsureSchema(ctx))
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+store.table.Sanitize())
	})
	return store
}

func TestStoreReplaceAndQuery(t *testing.T) {
	store := newTestStore(t, axisEmbedder{"space": {1, 0, 0}, "markets": {0, 1, 0}})
	ctx := context.Background()

	docs := []domain.CorpusDocument{
		{ID: "https://a/space", Text: "Rocket launch\n\nOrbit reached", Embedding: []float32{1, 0, 0}},
		{ID: "https://a/stocks", Text: "Stocks rally", Embedding: []float32{0, 1, 0}},
		{ID: "https://a/moon", Text: "Moon probe", Embedding: []float32{0.9, 0.1, 0}},
	}
	require.NoError(t, store.Replace(ctx, docs))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err := store.Query(ctx, "space", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://a/space", results[0].ID)
	assert.Equal(t, "Rocket launch", results[0].Title())
	assert.Equal(t, "https://a/moon", results[1].ID)

	require.NoError(t, store.Replace(ctx, docs[1:2]))
	n, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStoreReplaceRejectsWrongDimensions(t *testing.T) {
	store := newTestStore(t, axisEmbedder{})
	ctx := context.Background()

	require.NoError(t, store.Replace(ctx, []domain.CorpusDocument{{ID: "keep", Text: "t", Embedding: []float32{1, 0, 0}}}))

	err := store.Replace(ctx, []domain.CorpusDocument{{ID: "bad", Text: "t", Embedding: []float32{1}}})
	require.Error(t, err)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
