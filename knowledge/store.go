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

package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/poiesic/pairreader/ai"
	"github.com/poiesic/pairreader/core"
	"github.com/poiesic/pairreader/storage"
)

// Store is the knowledge base capability consumed by the pipelines.
type Store interface {
	// Add embeds and stores chunks, attaching a copy of metadata to each.
	// Returns the number of chunks stored. Blank chunks are skipped.
	// Chunks are keyed by content: a chunk already present, from any
	// source, is replaced along with its metadata.
	Add(ctx context.Context, chunks []string, metadata map[string]string) (int, error)

	// Reset removes every stored chunk.
	Reset(ctx context.Context) error

	// Query returns up to k passages per text, concatenated in text order.
	Query(ctx context.Context, texts []string, k int, filter *Filter) ([]core.Passage, error)

	// Sample draws a uniform random subset of document IDs. An exact count
	// greater than zero wins over fraction. Returns core.ErrEmptyCorpus when
	// the store is empty.
	Sample(ctx context.Context, count int, fraction float64) ([]core.ID, error)

	// Cluster groups the given documents by embedding density.
	Cluster(ctx context.Context, ids []core.ID, params ClusterParams) (*core.ClusterAssignment, error)

	// Documents fetches documents by ID, skipping missing ones.
	Documents(ctx context.Context, ids []core.ID) ([]*core.Document, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)
}

// Filter narrows a query. All set conditions must hold.
type Filter struct {
	// Metadata entries must match exactly.
	Metadata map[string]string
	// Contains terms must all appear in the text.
	Contains []string
	// NotContains terms must not appear in the text.
	NotContains []string
}

// Match reports whether doc satisfies the filter. A nil filter matches everything.
func (f *Filter) Match(doc *core.Document) bool {
	if f == nil {
		return true
	}
	for k, v := range f.Metadata {
		if got, ok := doc.Metadata[k]; !ok || got != v {
			return false
		}
	}
	for _, term := range f.Contains {
		if !strings.Contains(doc.Text, term) {
			return false
		}
	}
	for _, term := range f.NotContains {
		if strings.Contains(doc.Text, term) {
			return false
		}
	}
	return true
}

func (f *Filter) isEmpty() bool {
	return f == nil || (len(f.Metadata) == 0 && len(f.Contains) == 0 && len(f.NotContains) == 0)
}

// embedBatchSize bounds the number of chunks sent per embedding call.
const embedBatchSize = 64

// Base implements Store over a document repository and an embedder.
type Base struct {
	repo      storage.DocumentRepository
	embedder  ai.Embedder
	clusterer Clusterer
	logger    *slog.Logger

	randMu sync.Mutex
	rand   *rand.Rand
}

var _ Store = (*Base)(nil)

// Option configures a Base.
type Option func(*Base) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Base) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// WithClusterer replaces the default density clusterer.
func WithClusterer(clusterer Clusterer) Option {
	return func(b *Base) error {
		if clusterer == nil {
			return ErrClustererRequired
		}
		b.clusterer = clusterer
		return nil
	}
}

// WithRand sets the random source used by Sample. Tests use a seeded source.
func WithRand(r *rand.Rand) Option {
	return func(b *Base) error {
		b.rand = r
		return nil
	}
}

// NewBase creates a knowledge base.
func NewBase(repo storage.DocumentRepository, embedder ai.Embedder, opts ...Option) (*Base, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	b := &Base{
		repo:      repo,
		embedder:  embedder,
		clusterer: &DensityClusterer{},
		logger:    slog.Default().With("component", "knowledge-base"),
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// Add embeds chunks in batches and stores them. A chunk text shared by two
// sources is kept once, with the metadata of the last Add.
func (b *Base) Add(ctx context.Context, chunks []string, metadata map[string]string) (int, error) {
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) != "" {
			texts = append(texts, chunk)
		}
	}
	if len(texts) == 0 {
		return 0, nil
	}

	stored := 0
	for batch := range slices.Chunk(texts, embedBatchSize) {
		vectors, err := b.embedder.EmbedTexts(ctx, batch)
		if err != nil {
			return stored, err
		}
		if len(vectors) != len(batch) {
			return stored, core.NewServiceError("embed", fmt.Errorf("expected %d vectors, got %d", len(batch), len(vectors)))
		}

		docs := make([]*core.Document, len(batch))
		for i, text := range batch {
			docs[i] = &core.Document{
				Text:     text,
				Metadata: maps.Clone(metadata),
				Vector:   vectors[i],
			}
		}
		if _, err := b.repo.AddDocuments(ctx, docs...); err != nil {
			return stored, err
		}
		stored += len(docs)
	}

	b.logger.Debug("added chunks", "count", stored)
	return stored, nil
}

// Reset removes every document.
func (b *Base) Reset(ctx context.Context) error {
	b.logger.Info("resetting knowledge base")
	return b.repo.Clear(ctx)
}

// Query embeds each text and collects its nearest passages.
func (b *Base) Query(ctx context.Context, texts []string, k int, filter *Filter) ([]core.Passage, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidParams, k)
	}

	var match storage.DocumentFilter
	if !filter.isEmpty() {
		match = filter.Match
	}

	var passages []core.Passage
	for _, text := range texts {
		vector, err := b.embedder.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		results, err := b.repo.FindSimilar(ctx, vector, k, match)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			passages = append(passages, core.Passage{
				Id:       r.Document.Id,
				Text:     r.Document.Text,
				Metadata: r.Document.Metadata,
				Score:    r.Score,
			})
		}
	}
	return passages, nil
}

// Sample draws documents without replacement. Returned IDs keep store order.
func (b *Base) Sample(ctx context.Context, count int, fraction float64) ([]core.ID, error) {
	ids, err := b.repo.ListDocumentIDs(ctx)
	if err != nil {
		return nil, err
	}
	total := len(ids)
	if total == 0 {
		return nil, core.ErrEmptyCorpus
	}

	n := SampleSize(total, count, fraction)
	picks := b.perm(total)[:n]
	slices.Sort(picks)

	sample := make([]core.ID, n)
	for i, idx := range picks {
		sample[i] = ids[idx]
	}
	b.logger.Debug("sampled documents", "total", total, "sampled", n)
	return sample, nil
}

// SampleSize computes how many of total documents to draw. A positive count
// wins; otherwise ceil(fraction*total). The result is capped at total.
func SampleSize(total, count int, fraction float64) int {
	n := count
	if n <= 0 {
		n = int(math.Ceil(fraction * float64(total)))
	}
	return max(0, min(n, total))
}

func (b *Base) perm(n int) []int {
	if b.rand == nil {
		return rand.Perm(n)
	}
	b.randMu.Lock()
	defer b.randMu.Unlock()
	return b.rand.Perm(n)
}

// Cluster loads the documents and delegates to the clusterer. IDs without a
// stored document or vector are ignored.
func (b *Base) Cluster(ctx context.Context, ids []core.ID, params ClusterParams) (*core.ClusterAssignment, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	docs, err := b.repo.GetDocuments(ctx, ids...)
	if err != nil {
		return nil, err
	}
	docs = slices.DeleteFunc(docs, func(d *core.Document) bool { return len(d.Vector) == 0 })

	vectors := make([][]float32, len(docs))
	for i, d := range docs {
		vectors[i] = d.Vector
	}

	groups, noise, err := b.clusterer.Cluster(vectors, params)
	if err != nil {
		return nil, err
	}

	assignment := &core.ClusterAssignment{}
	for label, group := range groups {
		members := make([]core.ID, len(group))
		for i, idx := range group {
			members[i] = docs[idx].Id
		}
		assignment.Clusters = append(assignment.Clusters, core.Cluster{Label: label, Members: members})
	}
	for _, idx := range noise {
		assignment.Noise = append(assignment.Noise, docs[idx].Id)
	}

	b.logger.Debug("clustered documents", "documents", len(docs), "clusters", len(groups), "noise", len(noise))
	return assignment, nil
}

// Documents fetches documents by ID.
func (b *Base) Documents(ctx context.Context, ids []core.ID) ([]*core.Document, error) {
	return b.repo.GetDocuments(ctx, ids...)
}

// Count returns the number of stored documents.
func (b *Base) Count(ctx context.Context) (int, error) {
	return b.repo.CountDocuments(ctx)
}
