package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/pairreader/config"
)

func findFlag[T cli.Flag](flags []cli.Flag, name string) T {
	var zero T
	for _, flag := range flags {
		if f, ok := flag.(T); ok && flag.Names()[0] == name {
			return f
		}
	}
	return zero
}

func command(app *cli.App, name string) *cli.Command {
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

func TestAppFlags(t *testing.T) {
	app := newApp()

	t.Run("log-level defaults to warn", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](app.Flags, "log-level")
		require.NotNil(t, f)
		assert.Equal(t, "warn", f.Value)
		assert.Equal(t, []string{"l"}, f.Aliases)
	})

	t.Run("verbosity defaults to info", func(t *testing.T) {
		f := findFlag[*cli.IntFlag](app.Flags, "verbosity")
		require.NotNil(t, f)
		assert.Equal(t, config.VerbosityInfo, f.Value)
	})

	t.Run("store has no default", func(t *testing.T) {
		f := findFlag[*cli.StringFlag](app.Flags, "store")
		require.NotNil(t, f)
		assert.Empty(t, f.Value)
		assert.Empty(t, f.EnvVars)
	})

	t.Run("chat thread is optional", func(t *testing.T) {
		chat := command(app, "chat")
		require.NotNil(t, chat)
		f := findFlag[*cli.StringFlag](chat.Flags, "thread")
		require.NotNil(t, f)
		assert.False(t, f.Required)
		assert.Empty(t, f.Value)
	})

	t.Run("ingest reset is off by default", func(t *testing.T) {
		ingest := command(app, "ingest")
		require.NotNil(t, ingest)
		f := findFlag[*cli.BoolFlag](ingest.Flags, "reset")
		require.NotNil(t, f)
		assert.False(t, f.Value)
	})
}

func TestIngestCommandValidation(t *testing.T) {
	t.Run("requires a persistent store", func(t *testing.T) {
		err := newApp().Run([]string{"pairreader", "ingest", "notes.txt"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "persistent store")
	})

	t.Run("requires files", func(t *testing.T) {
		err := newApp().Run([]string{"pairreader", "--store", t.TempDir(), "ingest"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no files")
	})

	t.Run("rejects invalid verbosity", func(t *testing.T) {
		err := newApp().Run([]string{"pairreader", "--verbosity", "9", "ingest", "notes.txt"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid configuration")
	})
}

func probeApp(got **config.Config) *cli.App {
	app := newApp()
	app.Commands = []*cli.Command{{
		Name: "probe",
		Action: func(c *cli.Context) error {
			var err error
			*got, err = loadConfig(c)
			return err
		},
	}}
	return app
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairreader.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval_count: 5\nstore_path: /from/file\n"), 0o644))
	store := t.TempDir()

	var got *config.Config
	err := probeApp(&got).Run([]string{"pairreader", "--config", path, "--store", store, "-v", "0", "probe"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 5, got.RetrievalCount)
	assert.Equal(t, store, got.StorePath, "flags override the file")
	assert.Equal(t, config.VerbosityQuiet, got.Verbosity)

	t.Run("file value kept without flag", func(t *testing.T) {
		var got *config.Config
		err := probeApp(&got).Run([]string{"pairreader", "--config", path, "probe"})
		require.NoError(t, err)
		assert.Equal(t, "/from/file", got.StorePath)
	})

	t.Run("missing file", func(t *testing.T) {
		var got *config.Config
		err := probeApp(&got).Run([]string{"pairreader", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "probe"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load configuration")
	})
}

func TestSetupLogger(t *testing.T) {
	newLoggerApp := func() *cli.App {
		return &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "log-level",
					Aliases: []string{"l"},
					Value:   "warn",
				},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error { return nil },
		}
	}

	t.Run("valid log levels", func(t *testing.T) {
		testCases := []struct {
			input    string
			expected slog.Level
		}{
			{"debug", slog.LevelDebug},
			{"info", slog.LevelInfo},
			{"WaRn", slog.LevelWarn},
			{"ERROR", slog.LevelError},
		}

		for _, tc := range testCases {
			t.Run(tc.input, func(t *testing.T) {
				err := newLoggerApp().Run([]string{"test", "-l", tc.input})
				require.NoError(t, err)
				assert.True(t, slog.Default().Enabled(t.Context(), tc.expected))
				assert.False(t, slog.Default().Enabled(t.Context(), tc.expected-1))
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		err := newLoggerApp().Run([]string{"test", "--log-level", "verbose"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
		assert.Contains(t, err.Error(), "verbose")
	})
}
