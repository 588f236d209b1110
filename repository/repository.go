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


package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/viewstore/core"
	"github.com/poiesic/viewstore/query"
	"github.com/poiesic/viewstore/storage"
)

// ConnectionState is the lifecycle state of a repository's backend session.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// session is the state shared by every repository derived from the same
// New call: the adapter, its connection state, event listeners and the
// batch worker pool.
type session struct {
	adapter storage.Adapter
	logger  *slog.Logger
	pool    *ants.Pool

	// lifecycleMu serializes Connect and Disconnect; mu guards state only,
	// so State reports Connecting while the adapter connects.
	lifecycleMu sync.Mutex
	mu          sync.Mutex
	state       ConnectionState

	listenersMu sync.Mutex
	listeners   map[int]func(Event)
	nextID      int
}

// Repository binds a storage adapter to one collection and runs the view
// model lifecycle on it. Repositories for other collections share the same
// session through ForCollection.
type Repository struct {
	*session
	collection  string
	commitStamp string
}

// Option configures a Repository.
type Option func(*Repository) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithPoolSize sets the worker pool size used by CommitAll.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(r *Repository) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if r.pool != nil {
			r.pool.Release()
		}
		r.pool = pool
		return nil
	}
}

// WithCollection binds the repository to collection.
func WithCollection(collection string) Option {
	return func(r *Repository) error {
		r.collection = collection
		return nil
	}
}

// WithCommitStamp makes every commit set field to the current Unix time in
// milliseconds before writing.
func WithCommitStamp(field string) Option {
	return func(r *Repository) error {
		r.commitStamp = field
		return nil
	}
}

// New creates a disconnected repository on adapter.
func New(adapter storage.Adapter, opts ...Option) (*Repository, error) {
	if adapter == nil {
		return nil, ErrAdapterRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	r := &Repository{
		session: &session{
			adapter:   adapter,
			logger:    slog.Default(),
			pool:      pool,
			listeners: make(map[int]func(Event)),
		},
	}
	for _, opt := range opts {
		if optErr := opt(r); optErr != nil {
			r.Release()
			return nil, optErr
		}
	}
	return r, nil
}

// ForCollection returns a repository for collection sharing r's session,
// connection state, listeners and commit stamping.
func (r *Repository) ForCollection(collection string) *Repository {
	return &Repository{
		session:     r.session,
		collection:  collection,
		commitStamp: r.commitStamp,
	}
}

// Collection returns the bound collection name.
func (r *Repository) Collection() string { return r.collection }

// Adapter returns the storage adapter behind the repository.
func (r *Repository) Adapter() storage.Adapter { return r.adapter }

// State returns the current connection state.
func (r *Repository) State() ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Repository) setState(state ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
}

// Release frees the batch worker pool. The repository must not run
// CommitAll afterwards.
func (r *Repository) Release() {
	if r.pool != nil {
		r.pool.Release()
	}
}

// Connect opens the backend session and emits EventConnect. Calling it on a
// connected repository is a no-op. Failures are reported as
// *core.ConnectionError; retrying is up to the caller.
func (r *Repository) Connect(ctx context.Context) error {
	r.lifecycleMu.Lock()
	if r.State() == Connected {
		r.lifecycleMu.Unlock()
		return nil
	}

	r.setState(Connecting)
	if err := r.adapter.Connect(ctx); err != nil {
		r.setState(Disconnected)
		r.lifecycleMu.Unlock()
		var connErr *core.ConnectionError
		if !errors.As(err, &connErr) {
			err = &core.ConnectionError{Backend: r.adapter.Name(), Err: err}
		}
		return err
	}
	r.setState(Connected)
	r.lifecycleMu.Unlock()

	r.logger.Debug("repository connected", "backend", r.adapter.Name())
	r.emit(EventConnect)
	return nil
}

// Disconnect closes the backend session and emits EventDisconnect. It is a
// no-op when the repository is not connected.
func (r *Repository) Disconnect(ctx context.Context) error {
	r.lifecycleMu.Lock()
	if r.State() == Disconnected {
		r.lifecycleMu.Unlock()
		return nil
	}
	err := r.adapter.Disconnect(ctx)
	r.setState(Disconnected)
	r.lifecycleMu.Unlock()

	r.logger.Debug("repository disconnected", "backend", r.adapter.Name())
	r.emit(EventDisconnect)
	return core.WrapBackend("disconnect", err)
}

// CheckConnection runs the backend's provisioning for the collection. It is
// safe to call repeatedly and concurrently.
func (r *Repository) CheckConnection(ctx context.Context) error {
	if r.collection == "" {
		return storage.ErrCollectionRequired
	}
	return core.WrapBackend("check connection", r.adapter.CheckConnection(ctx, r.collection))
}

// Get returns the view model for id. An existing record comes back pending
// update with its token; a missing one comes back empty and pending create.
// An empty id gets a freshly generated one. Absence is never an error.
func (r *Repository) Get(ctx context.Context, id string) (*ViewModel, error) {
	if err := r.CheckConnection(ctx); err != nil {
		return nil, err
	}

	if id == "" {
		newID, err := r.adapter.GetNewID(ctx, r.collection)
		if err != nil {
			return nil, core.WrapBackend("new id", err)
		}
		return r.empty(newID), nil
	}

	rec, err := r.adapter.Get(ctx, r.collection, id)
	if err != nil {
		return nil, core.WrapBackend("get", err)
	}
	if rec == nil {
		return r.empty(id), nil
	}
	return newStored(rec, r), nil
}

// Find returns every view model matching q, ordered and paged by opts. All
// results are pending update. The result is never nil.
func (r *Repository) Find(ctx context.Context, q query.Query, opts query.Options) (ViewModels, error) {
	if err := r.CheckConnection(ctx); err != nil {
		return nil, err
	}
	recs, err := r.adapter.Find(ctx, r.collection, q, opts)
	if err != nil {
		return nil, core.WrapBackend("find", err)
	}
	vms := make(ViewModels, 0, len(recs))
	for _, rec := range recs {
		vms = append(vms, newStored(rec, r))
	}
	return vms, nil
}

// FindOne returns the first match of q, or nil when nothing matches. A nil
// q matches every record.
func (r *Repository) FindOne(ctx context.Context, q query.Query, opts query.Options) (*ViewModel, error) {
	opts.Limit = 1
	vms, err := r.Find(ctx, q, opts)
	if err != nil || len(vms) == 0 {
		return nil, err
	}
	return vms[0], nil
}

// Clear removes every record of the collection.
func (r *Repository) Clear(ctx context.Context) error {
	if r.collection == "" {
		return storage.ErrCollectionRequired
	}
	r.logger.Debug("clearing collection", "collection", r.collection)
	return core.WrapBackend("clear", r.adapter.Clear(ctx, r.collection))
}

// ClearAll removes every record of every collection touched through the
// backend. It is meant for tests and teardown; never use it in production.
func (r *Repository) ClearAll(ctx context.Context) error {
	r.logger.Warn("clearing all collections", "backend", r.adapter.Name())
	return core.WrapBackend("clear all", r.adapter.ClearAll(ctx))
}

func (r *Repository) empty(id string) *ViewModel {
	return &ViewModel{
		id:         id,
		attributes: core.Attributes{storage.IDField: id},
		action:     core.ActionCreate,
		repo:       r,
	}
}
