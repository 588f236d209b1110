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


// Package sqlite implements storage.Adapter on SQLite through the pure-Go
// modernc.org/sqlite driver. Each collection is a table holding the record
// id, its concurrency token and the JSON document.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/poiesic/viewstore/core"
	"github.com/poiesic/viewstore/query"
	"github.com/poiesic/viewstore/storage"

	_ "modernc.org/sqlite"
)

// Name is the backend tag reported by Adapter.Name.
const Name = "sqlite"

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const tablePrefix = "vm_"

// Adapter implements storage.Adapter using SQLite.
type Adapter struct {
	path        string
	logger      *slog.Logger
	collections *storage.Collections

	mu sync.RWMutex
	db *sql.DB
}

var _ storage.Adapter = (*Adapter)(nil)
var _ storage.Pinger = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// New creates an unconnected adapter for the database file at path. Use
// MemoryPath for a throwaway database.
func New(path string, collections *storage.Collections, opts ...Option) *Adapter {
	if collections == nil {
		collections = storage.NewCollections()
	}
	a := &Adapter{
		path:        path,
		logger:      slog.Default(),
		collections: collections,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db != nil {
		return nil
	}
	if a.path == "" {
		return &core.ConnectionError{Backend: Name, Err: fmt.Errorf("%w: sqlite database path required", core.ErrContractViolation)}
	}

	db, err := sql.Open("sqlite", dsn(a.path))
	if err != nil {
		return &core.ConnectionError{Backend: Name, Err: fmt.Errorf("failed to open database: %w", err)}
	}
	// A single connection serializes writers and keeps :memory: databases
	// shared across calls.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return &core.ConnectionError{Backend: Name, Err: err}
	}
	a.db = db
	a.logger.Debug("sqlite connected", "path", a.path)
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	a.collections.ResetProvisioning(a)
	a.logger.Debug("sqlite disconnected", "path", a.path)
	return core.WrapBackend("disconnect", err)
}

func (a *Adapter) Ping(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return core.ErrNotConnected
	}
	return core.WrapBackend("ping", a.db.PingContext(ctx))
}

// CheckConnection creates the collection's table once per session.
func (a *Adapter) CheckConnection(ctx context.Context, collection string) error {
	if collection == "" {
		return storage.ErrCollectionRequired
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return core.ErrNotConnected
	}
	return a.provision(ctx, collection)
}

func (a *Adapter) GetNewID(ctx context.Context, collection string) (string, error) {
	for {
		id := storage.NewID()
		rec, err := a.Get(ctx, collection, id)
		if err != nil {
			return "", err
		}
		if rec == nil {
			return id, nil
		}
	}
}

func (a *Adapter) Get(ctx context.Context, collection, id string) (*storage.Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return nil, core.ErrNotConnected
	}
	if err := a.provision(ctx, collection); err != nil {
		return nil, err
	}
	rec, err := readRecord(ctx, a.db, collection, id)
	return rec, core.WrapBackend("get", err)
}

func (a *Adapter) Find(ctx context.Context, collection string, q query.Query, opts query.Options) ([]*storage.Record, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return nil, core.ErrNotConnected
	}
	if err := a.provision(ctx, collection); err != nil {
		return nil, err
	}

	rows, err := a.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, token, data FROM %s ORDER BY id`, tableName(collection)))
	if err != nil {
		return nil, core.WrapBackend("find", fmt.Errorf("failed to query %s: %w", collection, err))
	}
	defer rows.Close()

	recs := make([]*storage.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, core.WrapBackend("find", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapBackend("find", err)
	}
	return query.Apply(recs, storage.RecordAttributes, q, opts)
}

// Commit checks the precondition and writes inside one transaction. The
// guarded statements repeat the token comparison in SQL, so a write that
// affects no rows is a lost race.
func (a *Adapter) Commit(ctx context.Context, collection string, action core.Action, id string, attrs core.Attributes, priorToken string) (string, error) {
	if err := storage.ValidateCommit(collection, id, action); err != nil {
		return "", err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return "", core.ErrNotConnected
	}
	if err := a.provision(ctx, collection); err != nil {
		return "", err
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return "", core.WrapBackend("commit", err)
	}
	defer tx.Rollback()

	existing, err := readRecord(ctx, tx, collection, id)
	if err != nil {
		return "", core.WrapBackend("commit", err)
	}
	write, err := storage.CheckPrecondition(collection, id, action, existing, priorToken)
	if err != nil {
		return "", err
	}

	table := tableName(collection)
	var (
		token string
		res   sql.Result
	)
	switch write {
	case storage.WriteNothing:
		return "", nil
	case storage.WritePut:
		var stamped core.Attributes
		token, stamped = storage.Stamp(id, attrs)
		data, err := storage.EncodeAttributes(stamped)
		if err != nil {
			return "", err
		}
		if existing == nil {
			res, err = tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s (id, token, data) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`, table),
				id, token, string(data))
		} else {
			res, err = tx.ExecContext(ctx,
				fmt.Sprintf(`UPDATE %s SET token = ?, data = ? WHERE id = ? AND token = ?`, table),
				token, string(data), id, existing.Token)
		}
		if err != nil {
			return "", core.WrapBackend("commit", err)
		}
	case storage.WriteDelete:
		res, err = tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND token = ?`, table),
			id, existing.Token)
		if err != nil {
			return "", core.WrapBackend("commit", err)
		}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", core.WrapBackend("commit", err)
	}
	if n == 0 {
		return "", core.NewConcurrencyError(collection, id, action)
	}
	if err := tx.Commit(); err != nil {
		return "", core.WrapBackend("commit", err)
	}
	return token, nil
}

func (a *Adapter) Clear(ctx context.Context, collection string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.db == nil {
		return core.ErrNotConnected
	}
	if err := a.provision(ctx, collection); err != nil {
		return err
	}
	_, err := a.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, tableName(collection)))
	return core.WrapBackend("clear", err)
}

func (a *Adapter) ClearAll(ctx context.Context) error {
	for _, name := range a.collections.Names() {
		if err := a.Clear(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// provision creates the collection's table. Callers hold a.mu.
func (a *Adapter) provision(ctx context.Context, collection string) error {
	return a.collections.Provision(ctx, a, collection, func(ctx context.Context) error {
		schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		token TEXT NOT NULL DEFAULT '',
		data TEXT NOT NULL
	)`, tableName(collection))
		if _, err := a.db.ExecContext(ctx, schema); err != nil {
			return core.WrapBackend("provision", fmt.Errorf("failed to create table for %s: %w", collection, err))
		}
		a.logger.Debug("sqlite collection provisioned", "collection", collection)
		return nil
	})
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// readRecord loads one record. Returns nil, nil if it does not exist.
func readRecord(ctx context.Context, q queryer, collection, id string) (*storage.Record, error) {
	row := q.QueryRowContext(ctx, fmt.Sprintf(`SELECT id, token, data FROM %s WHERE id = ?`, tableName(collection)), id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*storage.Record, error) {
	var id, token, data string
	if err := s.Scan(&id, &token, &data); err != nil {
		return nil, err
	}
	rec, err := storage.DecodeRecord([]byte(data))
	if err != nil {
		return nil, err
	}
	rec.ID = id
	rec.Token = token
	return rec, nil
}

// tableName returns the quoted table identifier for collection.
func tableName(collection string) string {
	return `"` + strings.ReplaceAll(tablePrefix+collection, `"`, `""`) + `"`
}

func dsn(path string) string {
	if path == MemoryPath {
		return path
	}
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}
