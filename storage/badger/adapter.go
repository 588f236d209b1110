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


package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/viewstore/core"
	"github.com/poiesic/viewstore/query"
	"github.com/poiesic/viewstore/storage"
)

// Name is the backend tag reported by Adapter.Name.
const Name = "badger"

// Adapter implements storage.Adapter on BadgerDB. Records are stored as
// envelopes under a per-collection key prefix; new ids come from a
// per-collection badger sequence.
type Adapter struct {
	path        string
	inMemory    bool
	logger      *slog.Logger
	collections *storage.Collections

	mu      sync.RWMutex
	backend *Backend

	seqMu     sync.Mutex
	sequences map[string]*badger.Sequence
}

var _ storage.Adapter = (*Adapter)(nil)
var _ storage.Pinger = (*Adapter)(nil)

// Option configures an Adapter.
type Option func(*Adapter)

// WithPath stores data in the directory at path.
func WithPath(path string) Option {
	return func(a *Adapter) {
		a.path = path
		a.inMemory = false
	}
}

// WithInMemory keeps all data in memory. Data is lost on Disconnect.
func WithInMemory() Option {
	return func(a *Adapter) {
		a.inMemory = true
	}
}

// WithLogger sets the logger for the adapter and badger itself.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// New creates an unconnected adapter. Without WithPath the database is
// in-memory.
func New(collections *storage.Collections, opts ...Option) *Adapter {
	if collections == nil {
		collections = storage.NewCollections()
	}
	a := &Adapter{
		inMemory:    true,
		logger:      slog.Default(),
		collections: collections,
		sequences:   make(map[string]*badger.Sequence),
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
	if a.backend != nil {
		return nil
	}
	if a.path == "" && !a.inMemory {
		return &core.ConnectionError{Backend: Name, Err: fmt.Errorf("%w: badger path required unless in-memory", core.ErrContractViolation)}
	}
	backend, err := OpenBackend(a.path, a.inMemory, a.logger)
	if err != nil {
		return &core.ConnectionError{Backend: Name, Err: err}
	}
	a.backend = backend
	a.logger.Debug("badger connected", "path", a.path, "in_memory", a.inMemory)
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.backend == nil {
		return nil
	}

	var errs []error
	a.seqMu.Lock()
	for name, seq := range a.sequences {
		if err := seq.Release(); err != nil {
			errs = append(errs, err)
		}
		delete(a.sequences, name)
	}
	a.seqMu.Unlock()

	if err := a.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	a.backend = nil
	a.collections.ResetProvisioning(a)
	a.logger.Debug("badger disconnected")
	return core.WrapBackend("disconnect", errors.Join(errs...))
}

func (a *Adapter) Ping(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.backend == nil || a.backend.IsClosed() {
		return core.ErrNotConnected
	}
	return nil
}

// CheckConnection registers collection. Badger needs no schema, so
// provisioning only opens the id sequence.
func (a *Adapter) CheckConnection(ctx context.Context, collection string) error {
	if collection == "" {
		return storage.ErrCollectionRequired
	}
	if err := a.Ping(ctx); err != nil {
		return err
	}
	return a.collections.Provision(ctx, a, collection, func(context.Context) error {
		_, err := a.sequence(collection)
		return err
	})
}

// GetNewID returns the next value of the collection's sequence that is not
// already used as an id.
func (a *Adapter) GetNewID(ctx context.Context, collection string) (string, error) {
	seq, err := a.sequence(collection)
	if err != nil {
		return "", err
	}
	for {
		next, err := seq.Next()
		if err != nil {
			return "", core.WrapBackend("next id", err)
		}
		// BadgerDB sequences can return 0 on first call, so we skip it
		if next == 0 {
			continue
		}
		id := strconv.FormatUint(next, 10)
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
	var rec *storage.Record
	err := a.view(func(tx *badger.Txn) error {
		var err error
		rec, err = readRecord(tx, makeRecordKey(collection, id))
		return err
	})
	if err != nil {
		return nil, core.WrapBackend("get", err)
	}
	return rec, nil
}

func (a *Adapter) Find(ctx context.Context, collection string, q query.Query, opts query.Options) ([]*storage.Record, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	recs := make([]*storage.Record, 0)
	err := a.view(func(tx *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = makeCollectionPrefix(collection)
		iter := tx.NewIterator(iterOpts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec *storage.Record
			err := iter.Item().Value(func(val []byte) error {
				var err error
				rec, err = storage.UnmarshalEnvelopeRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, core.WrapBackend("find", err)
	}
	return query.Apply(recs, storage.RecordAttributes, q, opts)
}

// Commit runs the compare-and-swap in one read-write transaction. Badger
// aborts the transaction with ErrConflict when another commit touched the
// key after it was read; that is reported as a concurrency error.
func (a *Adapter) Commit(ctx context.Context, collection string, action core.Action, id string, attrs core.Attributes, priorToken string) (string, error) {
	if err := storage.ValidateCommit(collection, id, action); err != nil {
		return "", err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.backend == nil {
		return "", core.ErrNotConnected
	}

	var token string
	key := makeRecordKey(collection, id)
	err := a.backend.WithTransaction(ctx, func(tx *badger.Txn) error {
		existing, err := readRecord(tx, key)
		if err != nil {
			return err
		}
		write, err := storage.CheckPrecondition(collection, id, action, existing, priorToken)
		if err != nil {
			return err
		}

		switch write {
		case storage.WritePut:
			var stamped core.Attributes
			token, stamped = storage.Stamp(id, attrs)
			body, err := storage.EncodeAttributes(stamped)
			if err != nil {
				return err
			}
			return tx.Set(key, storage.MarshalEnvelope(token, body))
		case storage.WriteDelete:
			return tx.Delete(key)
		}
		return nil
	})
	if errors.Is(err, badger.ErrConflict) {
		a.logger.Debug("badger commit conflict", "collection", collection, "id", id, "action", action)
		return "", core.NewConcurrencyError(collection, id, action)
	}
	if err != nil {
		return "", core.WrapBackend("commit", err)
	}
	return token, nil
}

func (a *Adapter) Clear(ctx context.Context, collection string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.backend == nil {
		return core.ErrNotConnected
	}
	return core.WrapBackend("clear", a.backend.DropPrefix(makeCollectionPrefix(collection)))
}

func (a *Adapter) ClearAll(ctx context.Context) error {
	for _, name := range a.collections.Names() {
		if err := a.Clear(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// view runs fn in a read-only transaction while holding the session.
func (a *Adapter) view(fn func(tx *badger.Txn) error) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.backend == nil {
		return core.ErrNotConnected
	}
	return a.backend.WithTx(fn, false)
}

// sequence returns the collection's id sequence, leasing it on first use.
func (a *Adapter) sequence(collection string) (*badger.Sequence, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.backend == nil {
		return nil, core.ErrNotConnected
	}

	a.seqMu.Lock()
	defer a.seqMu.Unlock()
	if seq, ok := a.sequences[collection]; ok {
		return seq, nil
	}
	seq, err := a.backend.GetSequence(makeSequenceKey(collection))
	if err != nil {
		return nil, core.WrapBackend("lease sequence", err)
	}
	a.sequences[collection] = seq
	return seq, nil
}

// readRecord reads the record at key. Returns nil, nil if it does not exist.
func readRecord(tx *badger.Txn, key []byte) (*storage.Record, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	var rec *storage.Record
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		rec, unmarshalErr = storage.UnmarshalEnvelopeRecord(val)
		return unmarshalErr
	})
	return rec, err
}
