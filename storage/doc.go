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

// Package storage provides the persistence abstraction layer for pairreader.
//
// This package defines repository interfaces that decouple the knowledge base
// and the workflow engine from the storage implementation. Two repositories
// exist:
//
//   - DocumentRepository: embedded text chunks and similarity scans
//   - CheckpointRepository: workflow snapshots keyed by namespace and thread
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return the repository interface:
//
//	docs, err := badger.NewDocumentRepository(backend)  // storage.DocumentRepository
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// Use in tests with in-memory storage:
//
//	docs, checkpoints, backend, err := badger.NewMemoryRepositories()
//
// # Thread Safety
//
// All repository implementations must be safe for concurrent use.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation.
package storage
