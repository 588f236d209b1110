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


package viewstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/viewstore/config"
	"github.com/poiesic/viewstore/core"
	"github.com/poiesic/viewstore/repository"
	"github.com/poiesic/viewstore/retry"
	"github.com/poiesic/viewstore/storage"
	"github.com/poiesic/viewstore/storage/badger"
	"github.com/poiesic/viewstore/storage/filestore"
	"github.com/poiesic/viewstore/storage/memory"
	"github.com/poiesic/viewstore/storage/sqlite"
)

// DefaultCommitStampField is the attribute write repositories stamp with
// the commit time in Unix milliseconds.
const DefaultCommitStampField = "commitStamp"

// Store owns one backend session shared by every repository it hands out.
type Store struct {
	base          *repository.Repository
	collections   *storage.Collections
	stopHeartbeat func()
	logger        *slog.Logger
}

// Option configures a Store.
type Option func(*storeOptions)

type storeOptions struct {
	logger      *slog.Logger
	adapter     storage.Adapter
	poolSize    int
	commitStamp string
	heartbeat   time.Duration
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// WithAdapter uses adapter instead of building one from the configured
// backend tag.
func WithAdapter(adapter storage.Adapter) Option {
	return func(o *storeOptions) {
		o.adapter = adapter
	}
}

// WithPoolSize sets the worker pool size used by CommitAll.
func WithPoolSize(size int) Option {
	return func(o *storeOptions) {
		o.poolSize = size
	}
}

// WithCommitStamp sets the attribute write repositories stamp on commit.
// An empty field disables stamping.
func WithCommitStamp(field string) Option {
	return func(o *storeOptions) {
		o.commitStamp = field
	}
}

// WithHeartbeat pings the backend every interval and disconnects on the
// first failure.
func WithHeartbeat(interval time.Duration) Option {
	return func(o *storeOptions) {
		o.heartbeat = interval
	}
}

// NewAdapter builds the adapter for cfg's backend tag. Tags are matched
// case-insensitively. collections is the registry the adapter records
// touched collections in.
func NewAdapter(cfg *config.Config, collections *storage.Collections, logger *slog.Logger) (storage.Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch config.NormalizeBackend(cfg.Backend) {
	case config.BackendMemory:
		return memory.New(collections), nil
	case config.BackendBadger:
		opts := []badger.Option{badger.WithLogger(logger)}
		if cfg.Badger.InMemory || cfg.Badger.Path == "" {
			opts = append(opts, badger.WithInMemory())
		} else {
			opts = append(opts, badger.WithPath(cfg.Badger.Path))
		}
		return badger.New(collections, opts...), nil
	case config.BackendSQLite:
		return sqlite.New(cfg.SQLite.Path, collections, sqlite.WithLogger(logger)), nil
	case config.BackendFile:
		return filestore.New(cfg.File.Path, collections, filestore.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("%w: implementation for backend %q does not exist", config.ErrUnknownBackend, cfg.Backend)
	}
}

// Open builds the configured adapter and connects it. Connecting is retried
// with exponential backoff until cfg.Connect.Timeout elapses; configuration
// errors are not retried. A nil cfg opens an in-memory store.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Store, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	options := &storeOptions{
		logger:      slog.Default(),
		commitStamp: DefaultCommitStampField,
	}
	for _, opt := range opts {
		opt(options)
	}

	collections := storage.NewCollections()
	adapter := options.adapter
	if adapter == nil {
		var err error
		adapter, err = NewAdapter(cfg, collections, options.logger)
		if err != nil {
			return nil, err
		}
	}

	repoOpts := []repository.Option{repository.WithLogger(options.logger)}
	if options.poolSize > 0 {
		repoOpts = append(repoOpts, repository.WithPoolSize(options.poolSize))
	}
	if options.commitStamp != "" {
		repoOpts = append(repoOpts, repository.WithCommitStamp(options.commitStamp))
	}
	base, err := repository.New(adapter, repoOpts...)
	if err != nil {
		return nil, err
	}

	if err := connect(ctx, base, cfg.Connect); err != nil {
		base.Release()
		return nil, err
	}

	s := &Store{
		base:          base,
		collections:   collections,
		stopHeartbeat: func() {},
		logger:        options.logger,
	}
	if options.heartbeat > 0 {
		s.stopHeartbeat = base.StartHeartbeat(context.WithoutCancel(ctx), options.heartbeat)
	}
	options.logger.Info("view store opened", "backend", adapter.Name())
	return s, nil
}

func connect(ctx context.Context, repo *repository.Repository, cfg config.ConnectConfig) error {
	if timeout := cfg.Timeout.Duration(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	policy := retry.Policy{
		MaxAttempts: attempts,
		BaseDelay:   cfg.BaseDelay.Duration(),
		MaxDelay:    cfg.Timeout.Duration(),
	}
	return retry.Do(ctx, policy, func(ctx context.Context) error {
		err := repo.Connect(ctx)
		if errors.Is(err, core.ErrContractViolation) {
			return retry.Permanent(err)
		}
		return err
	})
}

// Write returns a repository for collection that can commit and clear.
// Commits through it stamp the commit time.
func (s *Store) Write(collection string) *repository.Repository {
	return s.base.ForCollection(collection)
}

// Read returns a read-only repository for collection.
func (s *Store) Read(collection string) *repository.ReadOnly {
	return repository.NewReadOnly(s.base.ForCollection(collection))
}

// Subscribe registers fn for connect and disconnect events.
func (s *Store) Subscribe(fn func(repository.Event)) (unsubscribe func()) {
	return s.base.Subscribe(fn)
}

// Collections returns the names of every collection touched so far through
// an adapter built by Open. An adapter passed with WithAdapter keeps its own
// registry.
func (s *Store) Collections() []string {
	return s.collections.Names()
}

// Close stops the heartbeat, disconnects the backend and releases workers.
func (s *Store) Close(ctx context.Context) error {
	s.stopHeartbeat()
	err := s.base.Disconnect(ctx)
	s.base.Release()
	if err != nil {
		s.logger.Error("error closing view store", "err", err)
	}
	return err
}
