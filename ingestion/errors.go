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

import "errors"

var (
	// ErrStoreRequired is returned when a knowledge store is not provided.
	ErrStoreRequired = errors.New("knowledge store required")

	// ErrInvalidMaxAttempts is returned when a retry policy allows no attempts.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidChunking is returned for a non-positive chunk size or an
	// overlap not smaller than the chunk size.
	ErrInvalidChunking = errors.New("invalid chunking parameters")

	// ErrNoContent is returned when a file yields no text.
	ErrNoContent = errors.New("file contains no text")
)
