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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/pairreader"
	"github.com/poiesic/pairreader/channel"
	"github.com/poiesic/pairreader/config"
	"github.com/poiesic/pairreader/core"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "pairreader",
		Usage: "Read along with your documents: ask questions or explore their themes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a configuration file (yaml, toml or json)",
			},
			&cli.StringFlag{
				Name:    "store",
				Aliases: []string{"s"},
				Usage:   "Path to the BadgerDB knowledge base directory (in-memory when empty)",
			},
			&cli.IntFlag{
				Name:    "verbosity",
				Aliases: []string{"v"},
				Usage:   "Progress notices: 0 quiet, 1 info, 2 steps, 3 debug",
				Value:   config.VerbosityInfo,
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "chat",
				Usage:  "Start an interactive session. Use /Create or /Update followed by file paths to load documents",
				Action: chatCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "thread",
						Usage: "Conversation thread id (random when empty)",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Add files to a persistent knowledge base",
				ArgsUsage: "FILE...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "reset",
						Usage: "Clear the knowledge base before adding the files",
					},
				},
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if c.IsSet("store") {
		cfg.StorePath = c.String("store")
	}
	if c.IsSet("verbosity") {
		cfg.Verbosity = c.Int("verbosity")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func chatCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	console := channel.NewConsole(os.Stdin, os.Stdout)
	agent, err := pairreader.NewAgent(cfg, console)
	if err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}
	defer agent.Close()

	thread := c.String("thread")
	if thread == "" {
		thread = uuid.NewString()
	}
	fmt.Fprintf(os.Stderr, "Thread: %s\n", thread)

	for {
		if err := console.Prompt("> "); err != nil {
			return err
		}
		line, err := console.ReadLine(ctx)
		switch {
		case errors.Is(err, io.EOF), ctx.Err() != nil:
			return nil
		case err != nil:
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		if _, err := agent.Handle(ctx, thread, line, nil); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// service failures were already reported on the console
			if core.IsServiceError(err) {
				continue
			}
			if errors.Is(err, core.ErrInvalidCommand) {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			return err
		}
	}
}

func ingestCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.StorePath == "" {
		return errors.New("ingest needs a persistent store: set --store or store_path")
	}
	if c.NArg() == 0 {
		return errors.New("no files given")
	}

	var uploads []core.Upload
	for _, path := range c.Args().Slice() {
		uploads = append(uploads, core.Upload{Name: filepath.Base(path), Path: path})
	}

	console := channel.NewConsole(os.Stdin, os.Stderr)
	agent, err := pairreader.NewAgent(cfg, console)
	if err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}
	defer agent.Close()

	command := "/Update"
	if c.Bool("reset") {
		command = "/Create"
	}
	fmt.Fprintf(os.Stderr, "Knowledge base: %s\n", cfg.StorePath)
	if _, err := agent.Handle(context.Background(), uuid.NewString(), command, uploads); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
