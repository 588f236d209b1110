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


// Package filestore implements storage.Adapter as an in-memory table that is
// persisted to a single REZI-encoded file. Every successful write rewrites
// the file, so it suits small view stores and tooling rather than heavy
// write loads.
//
// The zero path keeps everything in memory and never touches disk.
package filestore

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/dekarrin/rezi/v2"
	"github.com/poiesic/viewstore/core"
	"github.com/poiesic/viewstore/query"
	"github.com/poiesic/viewstore/storage"
)

// Name is the backend tag reported by Adapter.Name.
const Name = "file"

// fileRecord is one stored record as it appears in the data file.
type fileRecord struct {
	Collection string
	ID         string
	Token      string

	// Doc is the JSON document including the id and token attributes.
	Doc string
}

func (r fileRecord) MarshalBinary() ([]byte, error) {
	var enc []byte

	enc = append(enc, rezi.MustEnc(r.Collection)...)
	enc = append(enc, rezi.MustEnc(r.ID)...)
	enc = append(enc, rezi.MustEnc(r.Token)...)
	enc = append(enc, rezi.MustEnc(r.Doc)...)

	return enc, nil
}

func (r *fileRecord) UnmarshalBinary(data []byte) error {
	rr, err := rezi.NewReader(bytes.NewBuffer(data), nil)
	if err != nil {
		return err
	}

	var decoded fileRecord

	err = rr.Dec(&decoded.Collection)
	if err != nil {
		return rezi.Wrapf(0, "collection: %s", err)
	}

	err = rr.Dec(&decoded.ID)
	if err != nil {
		return rezi.Wrapf(0, "id: %s", err)
	}

	err = rr.Dec(&decoded.Token)
	if err != nil {
		return rezi.Wrapf(0, "token: %s", err)
	}

	err = rr.Dec(&decoded.Doc)
	if err != nil {
		return rezi.Wrapf(0, "doc: %s", err)
	}

	*r = decoded
	return nil
}

// Adapter implements storage.Adapter on a REZI data file.
type Adapter struct {
	// DataFile is the file the adapter loads on Connect and rewrites after
	// every write. Empty means in-memory only.
	DataFile string

	logger      *slog.Logger
	collections *storage.Collections

	mtx       sync.RWMutex
	connected bool
	tables    map[string]map[string]fileRecord
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

// New creates an unconnected adapter persisting to file.
func New(file string, collections *storage.Collections, opts ...Option) *Adapter {
	if collections == nil {
		collections = storage.NewCollections()
	}
	a := &Adapter{
		DataFile:    file,
		logger:      slog.Default(),
		collections: collections,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return Name }

// Connect loads the data file. A missing or empty file starts an empty store.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	if a.connected {
		return nil
	}

	tables := make(map[string]map[string]fileRecord)
	if a.DataFile != "" {
		data, err := os.ReadFile(a.DataFile)
		if err != nil && !os.IsNotExist(err) {
			return &core.ConnectionError{Backend: Name, Err: fmt.Errorf("read file: %w", err)}
		}
		if len(data) > 0 {
			var recs []fileRecord
			if _, err := rezi.Dec(data, &recs); err != nil {
				return &core.ConnectionError{Backend: Name, Err: fmt.Errorf("load data: %w", err)}
			}
			for _, r := range recs {
				table, ok := tables[r.Collection]
				if !ok {
					table = make(map[string]fileRecord)
					tables[r.Collection] = table
				}
				table[r.ID] = r
			}
		}
	}

	a.tables = tables
	a.connected = true
	a.logger.Debug("file store connected", "file", a.DataFile, "collections", len(tables))
	return nil
}

// Disconnect flushes the store to disk and drops the in-memory copy.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	if !a.connected {
		return nil
	}
	err := a.persistUnsafe()
	a.tables = nil
	a.connected = false
	a.collections.ResetProvisioning(a)
	return core.WrapBackend("disconnect", err)
}

func (a *Adapter) Ping(ctx context.Context) error {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	if !a.connected {
		return core.ErrNotConnected
	}
	return nil
}

func (a *Adapter) CheckConnection(ctx context.Context, collection string) error {
	if collection == "" {
		return storage.ErrCollectionRequired
	}
	if err := a.Ping(ctx); err != nil {
		return err
	}
	return a.collections.Provision(ctx, a, collection, nil)
}

func (a *Adapter) GetNewID(ctx context.Context, collection string) (string, error) {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	if !a.connected {
		return "", core.ErrNotConnected
	}
	for {
		id := storage.NewID()
		if _, ok := a.tables[collection][id]; !ok {
			return id, nil
		}
	}
}

func (a *Adapter) Get(ctx context.Context, collection, id string) (*storage.Record, error) {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	if !a.connected {
		return nil, core.ErrNotConnected
	}
	r, ok := a.tables[collection][id]
	if !ok {
		return nil, nil
	}
	return decode(r)
}

func (a *Adapter) Find(ctx context.Context, collection string, q query.Query, opts query.Options) ([]*storage.Record, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	a.mtx.RLock()
	if !a.connected {
		a.mtx.RUnlock()
		return nil, core.ErrNotConnected
	}
	table := a.tables[collection]
	stored := make([]fileRecord, 0, len(table))
	for _, r := range table {
		stored = append(stored, r)
	}
	a.mtx.RUnlock()

	slices.SortFunc(stored, func(x, y fileRecord) int {
		return strings.Compare(x.ID, y.ID)
	})
	recs := make([]*storage.Record, 0, len(stored))
	for _, r := range stored {
		rec, err := decode(r)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return query.Apply(recs, storage.RecordAttributes, q, opts)
}

func (a *Adapter) Commit(ctx context.Context, collection string, action core.Action, id string, attrs core.Attributes, priorToken string) (string, error) {
	if err := storage.ValidateCommit(collection, id, action); err != nil {
		return "", err
	}

	a.mtx.Lock()
	defer a.mtx.Unlock()
	if !a.connected {
		return "", core.ErrNotConnected
	}

	var existing *storage.Record
	if r, ok := a.tables[collection][id]; ok {
		existing = &storage.Record{ID: r.ID, Token: r.Token}
	}
	write, err := storage.CheckPrecondition(collection, id, action, existing, priorToken)
	if err != nil {
		return "", err
	}

	if write == storage.WriteNothing {
		return "", nil
	}

	table, hadTable := a.tables[collection]
	if !hadTable {
		table = make(map[string]fileRecord)
		a.tables[collection] = table
	}
	prev, hadPrev := table[id]

	var token string
	switch write {
	case storage.WritePut:
		var stamped core.Attributes
		token, stamped = storage.Stamp(id, attrs)
		doc, err := storage.EncodeAttributes(stamped)
		if err != nil {
			return "", err
		}
		table[id] = fileRecord{Collection: collection, ID: id, Token: token, Doc: string(doc)}
	case storage.WriteDelete:
		delete(table, id)
	}

	if err := a.persistUnsafe(); err != nil {
		// Memory must keep matching the file.
		switch {
		case !hadTable:
			delete(a.tables, collection)
		case hadPrev:
			table[id] = prev
		default:
			delete(table, id)
		}
		return "", core.WrapBackend("commit", err)
	}
	return token, nil
}

func (a *Adapter) Clear(ctx context.Context, collection string) error {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	if !a.connected {
		return core.ErrNotConnected
	}
	table, ok := a.tables[collection]
	if !ok {
		return nil
	}
	delete(a.tables, collection)
	if err := a.persistUnsafe(); err != nil {
		a.tables[collection] = table
		return core.WrapBackend("clear", err)
	}
	return nil
}

func (a *Adapter) ClearAll(ctx context.Context) error {
	for _, name := range a.collections.Names() {
		if err := a.Clear(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Export encodes every stored record the way the data file holds them.
func (a *Adapter) Export() ([]byte, error) {
	a.mtx.RLock()
	defer a.mtx.RUnlock()
	if !a.connected {
		return nil, core.ErrNotConnected
	}
	return a.exportUnsafe()
}

func (a *Adapter) exportUnsafe() ([]byte, error) {
	var recs []fileRecord
	for _, table := range a.tables {
		for _, r := range table {
			recs = append(recs, r)
		}
	}
	slices.SortFunc(recs, func(x, y fileRecord) int {
		if c := strings.Compare(x.Collection, y.Collection); c != 0 {
			return c
		}
		return strings.Compare(x.ID, y.ID)
	})
	return rezi.Enc(recs)
}

// persistUnsafe writes the store to DataFile through a temporary file and a
// rename. Callers hold the write lock.
func (a *Adapter) persistUnsafe() error {
	if a.DataFile == "" {
		return nil
	}
	data, err := a.exportUnsafe()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(a.DataFile), filepath.Base(a.DataFile)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp.Name(), a.DataFile); err != nil {
		return fmt.Errorf("replace data file: %w", err)
	}
	return nil
}

func decode(r fileRecord) (*storage.Record, error) {
	rec, err := storage.DecodeRecord([]byte(r.Doc))
	if err != nil {
		return nil, err
	}
	rec.ID = r.ID
	rec.Token = r.Token
	return rec, nil
}
