package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/pairreader/ai/mock"
	"github.com/poiesic/pairreader/core"
	"github.com/poiesic/pairreader/knowledge"
	"github.com/poiesic/pairreader/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) knowledge.Store {
	t.Helper()
	docs, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	store, err := knowledge.NewBase(docs, mock.NewMockEmbedder())
	require.NoError(t, err)
	return store
}

func writeUpload(t *testing.T, name, content string) core.Upload {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return core.Upload{Name: name, Path: path}
}

// recordingMonitor captures monitor callbacks for assertions.
type recordingMonitor struct {
	mu     sync.Mutex
	events []string
}

func (m *recordingMonitor) add(e string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

func (m *recordingMonitor) Processing(int)               { m.add("processing") }
func (m *recordingMonitor) Parsing(file string)          { m.add("parsing " + file) }
func (m *recordingMonitor) Ingesting(file string, _ int) { m.add("ingesting " + file) }
func (m *recordingMonitor) Failed(file string, _ error)  { m.add("failed " + file) }

func TestNewPipeline_Validation(t *testing.T) {
	_, err := NewPipeline(nil)
	assert.ErrorIs(t, err, ErrStoreRequired)

	store := setupTestStore(t)
	_, err = NewPipeline(store, WithChunking(100, 100))
	assert.ErrorIs(t, err, ErrInvalidChunking)
	_, err = NewPipeline(store, WithRetryPolicy(RetryPolicy{}))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	p, err := NewPipeline(store, WithPoolSize(0), WithLogger(nil))
	require.NoError(t, err)
	p.Release()
}

func TestPipelineIngest(t *testing.T) {
	store := setupTestStore(t)
	p, err := NewPipeline(store, WithPoolSize(2), WithChunking(40, 0))
	require.NoError(t, err)
	defer p.Release()

	uploads := []core.Upload{
		writeUpload(t, "notes.txt", "The first paragraph talks about birds.\n\nThe second paragraph talks about trees."),
		writeUpload(t, "page.html", "<html><body><p>An HTML page about rivers.</p></body></html>"),
		{Name: "missing.txt", Path: filepath.Join(t.TempDir(), "missing.txt")},
		writeUpload(t, "empty.md", "   \n  "),
	}

	monitor := &recordingMonitor{}
	report, err := p.Ingest(context.Background(), uploads, monitor)
	require.NoError(t, err)

	assert.Equal(t, []string{"notes.txt", "page.html"}, report.Files)
	require.Len(t, report.Failed, 2)
	assert.Equal(t, "missing.txt", report.Failed[0].File)
	assert.ErrorIs(t, report.Failed[1].Err, ErrNoContent)
	assert.GreaterOrEqual(t, report.Chunks, 3)
	assert.Equal(t, report.Chunks, report.Total)

	assert.Equal(t, []string{
		"processing",
		"parsing notes.txt", "parsing page.html", "parsing missing.txt", "parsing empty.md",
		"ingesting notes.txt", "ingesting page.html", "failed missing.txt", "failed empty.md",
	}, monitor.events)

	passages, err := store.Query(context.Background(), []string{"rivers"}, 10,
		&knowledge.Filter{Metadata: map[string]string{MetadataFileName: "page.html"}})
	require.NoError(t, err)
	require.NotEmpty(t, passages)
	assert.Contains(t, passages[0].Text, "rivers")
}

func TestPipelineIngest_AppendsToExistingStore(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.Add(context.Background(), []string{"already here"}, nil)
	require.NoError(t, err)

	p, err := NewPipeline(store)
	require.NoError(t, err)
	defer p.Release()

	report, err := p.Ingest(context.Background(), []core.Upload{writeUpload(t, "a.txt", "new content")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Chunks)
	assert.Equal(t, 2, report.Total)
}

// flakyStore fails Add with a service error a fixed number of times.
type flakyStore struct {
	knowledge.Store
	failures int
	calls    int
}

func (s *flakyStore) Add(ctx context.Context, chunks []string, metadata map[string]string) (int, error) {
	s.calls++
	if s.calls <= s.failures {
		return 0, core.NewServiceError("embed", errors.New("overloaded"))
	}
	return s.Store.Add(ctx, chunks, metadata)
}

func TestPipelineIngest_RetriesTransientFailures(t *testing.T) {
	store := &flakyStore{Store: setupTestStore(t), failures: 2}
	p, err := NewPipeline(store, WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}))
	require.NoError(t, err)
	defer p.Release()

	report, err := p.Ingest(context.Background(), []core.Upload{writeUpload(t, "a.txt", "retry me")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, store.calls)
	assert.Equal(t, []string{"a.txt"}, report.Files)
}

func TestPipelineIngest_GivesUpAfterPolicy(t *testing.T) {
	store := &flakyStore{Store: setupTestStore(t), failures: 10}
	p, err := NewPipeline(store, WithRetryPolicy(RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond}))
	require.NoError(t, err)
	defer p.Release()

	report, err := p.Ingest(context.Background(), []core.Upload{writeUpload(t, "a.txt", "never stored")}, nil)
	require.Error(t, err)
	assert.True(t, core.IsServiceError(err))
	assert.Empty(t, report.Files)
}

func TestParser(t *testing.T) {
	parser, err := NewParser(20, 5)
	require.NoError(t, err)

	t.Run("splits long text", func(t *testing.T) {
		upload := writeUpload(t, "long.txt", strings.Repeat("word ", 40))
		chunks, err := parser.Parse(context.Background(), upload)
		require.NoError(t, err)
		assert.Greater(t, len(chunks), 1)
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c), 20)
		}
	})

	t.Run("csv rows", func(t *testing.T) {
		upload := writeUpload(t, "table.csv", "name,kind\noak,tree\nrobin,bird\n")
		chunks, err := parser.Parse(context.Background(), upload)
		require.NoError(t, err)
		assert.NotEmpty(t, chunks)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := parser.Parse(context.Background(), core.Upload{Name: "x.txt", Path: "/does/not/exist"})
		assert.Error(t, err)
	})

	_, err = NewParser(0, 0)
	assert.ErrorIs(t, err, ErrInvalidChunking)
}
