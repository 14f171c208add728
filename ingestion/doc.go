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

// Package ingestion turns uploaded files into knowledge base chunks.
//
// The Pipeline type manages the ingestion workflow:
//   - Parsing files with langchaingo document loaders (text, HTML, CSV, PDF)
//   - Splitting text into overlapping chunks
//   - Adding chunks to the knowledge store with retry on transient failures
//
// Parsing runs concurrently on a worker pool. Chunks are stored in upload
// order so the resulting knowledge base is deterministic for a given input.
// Files that fail to parse are reported and skipped.
package ingestion
