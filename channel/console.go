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

package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/pairreader/core"
)

// Console is a line-oriented Channel over a reader and a writer.
// A single goroutine reads lines so that an abandoned Ask does not lose
// the next line typed by the user.
type Console struct {
	mu        sync.Mutex // guards out and streaming
	out       io.Writer
	streaming bool

	in    io.Reader
	once  sync.Once
	lines chan string
	err   error // set before lines is closed
}

var _ Channel = (*Console)(nil)

// NewConsole creates a console reading from in and writing to out.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out, lines: make(chan string)}
}

func (c *Console) start() {
	c.once.Do(func() {
		go func() {
			scanner := bufio.NewScanner(c.in)
			for scanner.Scan() {
				c.lines <- strings.TrimRight(scanner.Text(), "\r")
			}
			c.err = scanner.Err()
			if c.err == nil {
				c.err = io.EOF
			}
			close(c.lines)
		}()
	})
}

// ReadLine waits for the next input line. Returns io.EOF when the input is exhausted.
func (c *Console) ReadLine(ctx context.Context) (string, error) {
	c.start()
	select {
	case line, ok := <-c.lines:
		if !ok {
			return "", c.err
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Prompt writes text without a trailing newline.
func (c *Console) Prompt(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endStream()
	_, err := io.WriteString(c.out, text)
	return err
}

func (c *Console) Ask(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	if err := c.Send(ctx, prompt); err != nil {
		return "", err
	}
	if timeout <= 0 {
		return c.ReadLine(ctx)
	}

	askCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	line, err := c.ReadLine(askCtx)
	if err != nil && ctx.Err() == nil && askCtx.Err() != nil {
		return "", fmt.Errorf("%w after %s", core.ErrTimeoutExpired, timeout)
	}
	return line, err
}

func (c *Console) Send(_ context.Context, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endStream()
	_, err := fmt.Fprintln(c.out, msg)
	return err
}

func (c *Console) StreamChunk(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streaming = true
	_, err := io.WriteString(c.out, text)
	return err
}

// endStream terminates a streamed message. Caller holds mu.
func (c *Console) endStream() {
	if c.streaming {
		io.WriteString(c.out, "\n")
		c.streaming = false
	}
}
