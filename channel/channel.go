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

// Package channel defines how the agent talks to the user.
package channel

import (
	"context"
	"time"
)

// Channel presents output to the user and collects input.
// Implementations must be safe for concurrent use.
type Channel interface {
	// Ask shows prompt and waits for one reply. A zero timeout waits until
	// ctx is done. Returns core.ErrTimeoutExpired when the timeout elapses.
	Ask(ctx context.Context, prompt string, timeout time.Duration) (string, error)

	// Send delivers a complete message.
	Send(ctx context.Context, msg string) error

	// StreamChunk delivers part of a message being generated. The next Send
	// terminates the streamed message.
	StreamChunk(ctx context.Context, text string) error
}
