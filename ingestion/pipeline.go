// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ingestion

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/pairreader/core"
	"github.com/poiesic/pairreader/knowledge"
)

// MetadataFileName is the metadata key holding the source file name of a chunk.
const MetadataFileName = "fname"

// Monitor observes an ingestion run. Methods are called from the goroutine
// running Ingest, in upload order.
type Monitor interface {
	Processing(files int)
	Parsing(file string)
	Ingesting(file string, chunks int)
	Failed(file string, err error)
}

type noopMonitor struct{}

var _ Monitor = noopMonitor{}

func (noopMonitor) Processing(int)        {}
func (noopMonitor) Parsing(string)        {}
func (noopMonitor) Ingesting(string, int) {}
func (noopMonitor) Failed(string, error)  {}

// FileError records a file that could not be parsed.
type FileError struct {
	File string
	Err  error
}

// Report summarizes an ingestion run.
type Report struct {
	// Files lists the files whose chunks were stored, in upload order.
	Files  []string
	Failed []FileError
	// Chunks is the number of chunks stored by this run.
	Chunks int
	// Total is the knowledge base size after the run.
	Total int
}

// Pipeline parses uploads concurrently and adds their chunks to a knowledge store.
type Pipeline struct {
	store  knowledge.Store
	parser *Parser
	pool   *ants.Pool
	retry  RetryPolicy
	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the number of files parsed at once.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithChunking sets the chunk size and overlap in characters.
func WithChunking(size, overlap int) Option {
	return func(p *Pipeline) error {
		parser, err := NewParser(size, overlap)
		if err != nil {
			return err
		}
		p.parser = parser
		return nil
	}
}

// WithRetryPolicy sets the retry policy for adding chunks.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(p *Pipeline) error {
		if policy.MaxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.retry = policy
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(store knowledge.Store, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	poolSize := max(1, runtime.NumCPU()/2)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	parser, err := NewParser(DefaultChunkSize, DefaultChunkOverlap)
	if err != nil {
		pool.Release()
		return nil, err
	}

	p := &Pipeline{
		store:  store,
		parser: parser,
		pool:   pool,
		retry:  DefaultRetryPolicy,
		logger: slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

type parsed struct {
	chunks []string
	err    error
}

// Ingest parses uploads and adds their chunks to the store in upload order.
// Files that fail to parse are reported and skipped. A failure to store
// chunks aborts the run with the chunks added so far left in place.
func (p *Pipeline) Ingest(ctx context.Context, uploads []core.Upload, monitor Monitor) (*Report, error) {
	if monitor == nil {
		monitor = noopMonitor{}
	}
	monitor.Processing(len(uploads))

	results := make([]parsed, len(uploads))
	var wg sync.WaitGroup
	for i, upload := range uploads {
		monitor.Parsing(upload.Name)
		wg.Add(1)
		task := func() {
			defer wg.Done()
			chunks, err := p.parser.Parse(ctx, upload)
			results[i] = parsed{chunks: chunks, err: err}
		}
		if err := p.pool.Submit(task); err != nil {
			wg.Done()
			results[i] = parsed{err: err}
		}
	}
	wg.Wait()

	report := &Report{}
	for i, upload := range uploads {
		res := results[i]
		if res.err != nil {
			p.logger.Warn("failed to parse file", "file", upload.Name, "err", res.err)
			monitor.Failed(upload.Name, res.err)
			report.Failed = append(report.Failed, FileError{File: upload.Name, Err: res.err})
			continue
		}

		monitor.Ingesting(upload.Name, len(res.chunks))
		metadata := map[string]string{MetadataFileName: upload.Name}
		var added int
		err := RetryWithBackoff(ctx, p.retry, func() error {
			var err error
			added, err = p.store.Add(ctx, res.chunks, metadata)
			return err
		})
		if err != nil {
			p.logger.Error("failed to add chunks", "file", upload.Name, "err", err)
			return report, err
		}
		report.Files = append(report.Files, upload.Name)
		report.Chunks += added
	}

	total, err := p.store.Count(ctx)
	if err != nil {
		return report, err
	}
	report.Total = total

	p.logger.Info("ingestion complete", "files", len(report.Files), "failed", len(report.Failed), "chunks", report.Chunks, "total", total)
	return report, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
