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

package storage

import (
	"context"
	"time"

	"github.com/poiesic/pairreader/core"
)

// DocumentFilter selects documents during a similarity scan. A nil filter accepts all.
type DocumentFilter func(doc *core.Document) bool

type DocumentRepository interface {
	// AddDocuments stores documents keyed by their content-derived ID.
	// Documents with ID=0 get IDFromContent(Text). Re-adding a document
	// replaces the stored copy, metadata included, so identical text from
	// two sources ends up as one record carrying the later metadata.
	// Sets InsertedAt if not already set.
	AddDocuments(ctx context.Context, docs ...*core.Document) ([]*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocuments retrieves multiple documents in the order of ids.
	// Returns only the documents that exist (no error for missing documents).
	GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error)

	// ListDocumentIDs returns every stored document ID in ascending order.
	ListDocumentIDs(ctx context.Context) ([]core.ID, error)

	// CountDocuments returns the number of stored documents.
	CountDocuments(ctx context.Context) (int, error)

	// FindSimilar returns up to limit documents accepted by filter, ordered by
	// cosine similarity to vector (highest first).
	FindSimilar(ctx context.Context, vector []float32, limit int, filter DocumentFilter) ([]*core.SearchResult, error)

	// Clear removes every document.
	Clear(ctx context.Context) error

	// Close releases resources held by the repository.
	Close() error
}

// Checkpoint is a stored workflow snapshot. Payload is opaque to storage.
type Checkpoint struct {
	ID        string
	Namespace string // owning graph
	ThreadID  string
	Cursor    string // next step to run
	Sequence  uint64
	Payload   []byte
	CreatedAt time.Time
}

type CheckpointRepository interface {
	// SaveCheckpoint stores checkpoint as the latest snapshot of its thread
	// and appends it to the thread history. Stored checkpoints are never mutated.
	// Implementations may bound the history by dropping its oldest entries.
	SaveCheckpoint(ctx context.Context, checkpoint *Checkpoint) error

	// LoadCheckpoint retrieves the latest checkpoint of a thread.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, namespace, threadID string) (*Checkpoint, error)

	// ListCheckpoints returns the retained thread history in sequence order.
	ListCheckpoints(ctx context.Context, namespace, threadID string) ([]*Checkpoint, error)

	// DeleteThread removes the latest checkpoint and history of a thread.
	DeleteThread(ctx context.Context, namespace, threadID string) error
}
