package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Decomposition)
	assert.Equal(t, 10, cfg.RetrievalCount)
	assert.Equal(t, 0.1, cfg.SampleFraction)
	assert.Equal(t, 90*time.Second, cfg.ApprovalTimeout)
	assert.Equal(t, 90*time.Second, cfg.UploadTimeout)
	assert.Positive(t, cfg.MapConcurrency)
	assert.Empty(t, cfg.StorePath)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{name: "defaults"},
		{name: "exact sample ignores fraction", opts: []Option{WithSampling(5, 0)}},
		{name: "retrieval count zero", opts: []Option{WithRetrievalCount(0)}, wantErr: true},
		{name: "retrieval count too large", opts: []Option{WithRetrievalCount(101)}, wantErr: true},
		{name: "negative sample count", opts: []Option{WithSampling(-1, 0.1)}, wantErr: true},
		{name: "fraction above one", opts: []Option{WithSampling(0, 1.5)}, wantErr: true},
		{name: "granularity zero", opts: []Option{WithClustering(0, 0, 0)}, wantErr: true},
		{name: "max below min", opts: []Option{WithClustering(0.1, 5, 3)}, wantErr: true},
		{name: "auto max", opts: []Option{WithClustering(0.1, 5, 0)}},
		{name: "verbosity too high", opts: []Option{WithVerbosity(4)}, wantErr: true},
		{name: "no concurrency", opts: []Option{WithMapConcurrency(0)}, wantErr: true},
		{name: "negative timeout", opts: []Option{WithApprovalTimeout(-time.Second)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfig(tt.opts...).Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairreader.yaml")
	content := `
decomposition: false
retrieval_count: 4
sample_count: 12
approval_timeout: 15s
ai:
  model: openai:qwen2.5:3b
  embedding_host: http://localhost:8080
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Decomposition)
	assert.Equal(t, 4, cfg.RetrievalCount)
	assert.Equal(t, 12, cfg.SampleCount)
	assert.Equal(t, 15*time.Second, cfg.ApprovalTimeout)
	assert.Equal(t, 90*time.Second, cfg.UploadTimeout, "missing keys keep defaults")
	assert.Equal(t, "openai:qwen2.5:3b", cfg.AI.Model)
	assert.Equal(t, "http://localhost:8080/v1", cfg.AI.EmbeddingHost)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairreader.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval_count: 4\n"), 0o600))
	t.Setenv("PAIRREADER_RETRIEVAL_COUNT", "7")
	t.Setenv("PAIRREADER_AI_EMBEDDING_MODEL", "nomic-embed-text")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.RetrievalCount)
	assert.Equal(t, "nomic-embed-text", cfg.AI.EmbeddingModel)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval_count: 500\n"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLive(t *testing.T) {
	cfg := DefaultConfig()
	live, err := NewLive(cfg)
	require.NoError(t, err)

	cfg.RetrievalCount = 3
	assert.Equal(t, 10, live.Load().RetrievalCount, "live holds a copy")

	require.NoError(t, live.Store(cfg))
	assert.Equal(t, 3, live.Load().RetrievalCount)

	assert.Error(t, live.Store(NewConfig(WithRetrievalCount(0))))
	assert.Equal(t, 3, live.Load().RetrievalCount, "invalid config is rejected")

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = live.Store(NewConfig(WithRetrievalCount(i + 1)))
			_ = live.Load().RetrievalCount
		}()
	}
	wg.Wait()
}
