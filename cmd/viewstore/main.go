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
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/poiesic/viewstore"
	"github.com/poiesic/viewstore/config"
	"github.com/poiesic/viewstore/core"
	"github.com/poiesic/viewstore/query"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "viewstore",
		Usage: "Inspect and edit view model collections",
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
				Usage:   "Path to YAML config file (default: search standard locations)",
				EnvVars: []string{config.EnvConfigPath},
			},
			&cli.StringFlag{
				Name:    "backend",
				Aliases: []string{"b"},
				Usage:   "Backend to use (memory, badger, sqlite, file), overrides config",
			},
			&cli.StringFlag{
				Name:    "path",
				Aliases: []string{"p"},
				Usage:   "Data path for the selected backend, overrides config",
			},
			&cli.StringFlag{
				Name:     "collection",
				Aliases:  []string{"C"},
				Usage:    "Collection to operate on",
				Required: true,
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print one view model",
				ArgsUsage: "<id>",
				Action:    getCommand,
			},
			{
				Name:   "find",
				Usage:  "Print view models matching a query",
				Action: findCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "query",
						Aliases: []string{"q"},
						Usage:   `Query as JSON, e.g. '{"age":{"$gte":21}}'`,
						Value:   "{}",
					},
					&cli.IntFlag{
						Name:  "skip",
						Usage: "Number of matches to skip",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of matches (0 means all)",
					},
					&cli.StringFlag{
						Name:  "sort",
						Usage: "Sort order, e.g. 'name:1,age:-1'",
					},
				},
			},
			{
				Name:      "set",
				Usage:     "Set attributes and commit, creating the view model if needed",
				ArgsUsage: "<id> <path=value>...",
				Action:    setCommand,
			},
			{
				Name:      "delete",
				Usage:     "Delete one view model",
				ArgsUsage: "<id>",
				Action:    deleteCommand,
			},
			{
				Name:   "clear",
				Usage:  "Delete every view model of the collection",
				Action: clearCommand,
			},
		},
	}
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

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// loadConfig resolves the config file and applies flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, _, err = config.LoadFromPath(path)
	} else {
		cfg, _, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if backend := c.String("backend"); backend != "" {
		cfg.Backend = config.NormalizeBackend(backend)
	}
	if path := c.String("path"); path != "" {
		switch cfg.Backend {
		case config.BackendBadger:
			cfg.Badger.Path = path
			cfg.Badger.InMemory = false
		case config.BackendSQLite:
			cfg.SQLite.Path = path
		case config.BackendFile:
			cfg.File.Path = path
		default:
			return nil, fmt.Errorf("--path is not supported by the %s backend", cfg.Backend)
		}
	}
	if cfg.Backend == config.BackendSQLite && cfg.SQLite.Path == "" {
		cfg.SQLite.Path = ":memory:"
	}
	return cfg, cfg.Validate()
}

// withStore opens the configured store, runs fn and closes the store.
func withStore(c *cli.Context, fn func(ctx context.Context, store *viewstore.Store) error) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, err := viewstore.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close(ctx)
	return fn(ctx, store)
}

func getCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("id is required")
	}
	return withStore(c, func(ctx context.Context, store *viewstore.Store) error {
		vm, err := store.Read(c.String("collection")).Get(ctx, id)
		if err != nil {
			return err
		}
		if vm == nil {
			return fmt.Errorf("%s not found", id)
		}
		return printJSON(c, vm)
	})
}

func findCommand(c *cli.Context) error {
	q, err := parseQuery(c.String("query"))
	if err != nil {
		return err
	}
	opts := query.Options{Skip: c.Int("skip"), Limit: c.Int("limit")}
	if order := c.String("sort"); order != "" {
		if opts.Sort, err = query.ParseSort(order); err != nil {
			return err
		}
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	return withStore(c, func(ctx context.Context, store *viewstore.Store) error {
		vms, err := store.Read(c.String("collection")).Find(ctx, q, opts)
		if err != nil {
			return err
		}
		return printJSON(c, vms)
	})
}

func setCommand(c *cli.Context) error {
	args := c.Args().Slice()
	if len(args) < 2 {
		return fmt.Errorf("usage: set <id> <path=value>...")
	}
	id := args[0]
	values, err := parseAssignments(args[1:])
	if err != nil {
		return err
	}

	return withStore(c, func(ctx context.Context, store *viewstore.Store) error {
		vm, err := store.Write(c.String("collection")).Get(ctx, id)
		if err != nil {
			return err
		}
		if err := vm.SetAll(values); err != nil {
			return err
		}
		if err := vm.Commit(ctx); err != nil {
			return err
		}
		return printJSON(c, vm)
	})
}

func deleteCommand(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("id is required")
	}
	return withStore(c, func(ctx context.Context, store *viewstore.Store) error {
		vm, err := store.Write(c.String("collection")).Get(ctx, id)
		if err != nil {
			return err
		}
		if vm.Action() == core.ActionCreate {
			return fmt.Errorf("%s not found", id)
		}
		if err := vm.Destroy(); err != nil {
			return err
		}
		if err := vm.Commit(ctx); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "deleted %s\n", id)
		return nil
	})
}

func clearCommand(c *cli.Context) error {
	return withStore(c, func(ctx context.Context, store *viewstore.Store) error {
		collection := c.String("collection")
		if err := store.Write(collection).Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "cleared %s\n", collection)
		return nil
	})
}

func parseQuery(s string) (query.Query, error) {
	v, err := core.UnmarshalJSON([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid query: must be a JSON object")
	}
	return query.Query(m), nil
}

// parseAssignments turns path=value arguments into attribute values. Values
// are parsed as JSON and fall back to plain strings.
func parseAssignments(args []string) (map[string]any, error) {
	values := make(map[string]any, len(args))
	for _, arg := range args {
		path, raw, ok := strings.Cut(arg, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid assignment %q: want path=value", arg)
		}
		var v any = raw
		if json.Valid([]byte(raw)) {
			parsed, err := core.UnmarshalJSON([]byte(raw))
			if err != nil {
				return nil, fmt.Errorf("invalid value for %s: %w", path, err)
			}
			v = parsed
		}
		values[path] = v
	}
	return values, nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

