package channel

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/pairreader/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole_AskReadsLine(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader("yes please\r\nnext\n"), &out)
	ctx := context.Background()

	reply, err := c.Ask(ctx, "Proceed?", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "yes please", reply)

	line, err := c.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "next", line)

	_, err = c.ReadLine(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "Proceed?\n", out.String())
}

func TestConsole_AskTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	c := NewConsole(pr, io.Discard)

	_, err := c.Ask(context.Background(), "Upload files", 20*time.Millisecond)
	assert.ErrorIs(t, err, core.ErrTimeoutExpired)
}

func TestConsole_AskCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	c := NewConsole(pr, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Ask(ctx, "?", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsole_StreamThenSend(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader(""), &out)
	ctx := context.Background()

	require.NoError(t, c.StreamChunk(ctx, "Hel"))
	require.NoError(t, c.StreamChunk(ctx, "lo"))
	require.NoError(t, c.Send(ctx, "done"))

	assert.Equal(t, "Hello\ndone\n", out.String())
}

func TestRecorder(t *testing.T) {
	r := NewRecorder("first")
	ctx := context.Background()

	reply, err := r.Ask(ctx, "q1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", reply)

	_, err = r.Ask(ctx, "q2", time.Second)
	assert.ErrorIs(t, err, core.ErrTimeoutExpired)

	require.NoError(t, r.Send(ctx, "hello world"))
	require.NoError(t, r.StreamChunk(ctx, "a"))
	require.NoError(t, r.StreamChunk(ctx, "b"))

	assert.Equal(t, []string{"q1", "q2"}, r.Prompts())
	assert.Equal(t, []string{"hello world"}, r.Sent())
	assert.Equal(t, "ab", r.Streamed())
	assert.True(t, r.Contains("world"))
	assert.False(t, r.Contains("absent"))
}
