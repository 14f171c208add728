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

package badger

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/pairreader/storage"
)

// DefaultHistoryLimit is the number of history entries kept per thread.
const DefaultHistoryLimit = 16

// CheckpointRepository implements storage.CheckpointRepository for BadgerDB.
type CheckpointRepository struct {
	backend      *Backend
	historyLimit int
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

// CheckpointOption configures a CheckpointRepository.
type CheckpointOption func(*CheckpointRepository)

// WithHistoryLimit keeps at most n history entries per thread. Values below
// one are ignored.
func WithHistoryLimit(n int) CheckpointOption {
	return func(r *CheckpointRepository) {
		if n > 0 {
			r.historyLimit = n
		}
	}
}

// NewCheckpointRepository creates a new CheckpointRepository.
func NewCheckpointRepository(backend *Backend, opts ...CheckpointOption) *CheckpointRepository {
	r := &CheckpointRepository{
		backend:      backend,
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SaveCheckpoint persists a checkpoint as the latest of its thread and
// records it in the thread history. History entries older than the limit
// are deleted in the same transaction.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, checkpoint *storage.Checkpoint) error {
	if checkpoint == nil || checkpoint.Namespace == "" || checkpoint.ThreadID == "" {
		return storage.ErrInvalidCheckpoint
	}
	if checkpoint.CreatedAt.IsZero() {
		checkpoint.CreatedAt = time.Now().UTC()
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		value := storage.MarshalCheckpoint(checkpoint)
		if err := tx.Set(makeCheckpointKey(checkpoint.Namespace, checkpoint.ThreadID), value); err != nil {
			return err
		}
		historyKey := makeCheckpointHistoryKey(checkpoint.Namespace, checkpoint.ThreadID, checkpoint.Sequence)
		if err := tx.Set(historyKey, value); err != nil {
			return err
		}
		if err := r.pruneHistory(tx, checkpoint); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// pruneHistory deletes the entries of the thread whose sequence is at or
// below checkpoint.Sequence minus the history limit.
func (r *CheckpointRepository) pruneHistory(tx *badger.Txn, checkpoint *storage.Checkpoint) error {
	if checkpoint.Sequence <= uint64(r.historyLimit) {
		return nil
	}
	cutoff := makeCheckpointHistoryKey(checkpoint.Namespace, checkpoint.ThreadID, checkpoint.Sequence-uint64(r.historyLimit))
	prefix := makeCheckpointHistoryPrefix(checkpoint.Namespace, checkpoint.ThreadID)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	var stale [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		key := iter.Item().KeyCopy(nil)
		if len(key) != len(prefix)+8 || bytes.Compare(key, cutoff) > 0 {
			break
		}
		stale = append(stale, key)
	}
	iter.Close()

	for _, key := range stale {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// LoadCheckpoint retrieves the latest checkpoint of a thread.
// Returns nil, nil if no checkpoint exists.
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, namespace, threadID string) (*storage.Checkpoint, error) {
	var checkpoint *storage.Checkpoint
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCheckpointKey(namespace, threadID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			checkpoint, unmarshalErr = storage.UnmarshalCheckpoint(val)
			return unmarshalErr
		})
	}, false)

	return checkpoint, err
}

// ListCheckpoints returns the retained checkpoints of a thread, oldest first.
func (r *CheckpointRepository) ListCheckpoints(ctx context.Context, namespace, threadID string) ([]*storage.Checkpoint, error) {
	var results []*storage.Checkpoint
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeCheckpointHistoryPrefix(namespace, threadID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				checkpoint, err := storage.UnmarshalCheckpoint(val)
				if err != nil {
					return err
				}
				results = append(results, checkpoint)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return results, err
}

// DeleteThread removes the latest checkpoint and the history of a thread.
func (r *CheckpointRepository) DeleteThread(ctx context.Context, namespace, threadID string) error {
	if err := r.backend.DropPrefix(makeCheckpointHistoryPrefix(namespace, threadID)); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeCheckpointKey(namespace, threadID)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
