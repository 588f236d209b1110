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


// Package memory implements storage.Adapter on in-process B-trees. Data
// lives only as long as the adapter; it is meant for tests, tooling and
// ephemeral views.
package memory

import (
	"context"
	"sync"

	"github.com/google/btree"
	"github.com/poiesic/viewstore/core"
	"github.com/poiesic/viewstore/query"
	"github.com/poiesic/viewstore/storage"
)

// Name is the backend tag reported by Adapter.Name.
const Name = "memory"

const degree = 32

// entry stores a record encoded, so callers never share maps with the tree.
type entry struct {
	id    string
	token string
	doc   []byte
}

func (e *entry) Less(than btree.Item) bool {
	return e.id < than.(*entry).id
}

// Adapter keeps one B-tree per collection, ordered by record id.
type Adapter struct {
	mu          sync.RWMutex
	trees       map[string]*btree.BTree
	connected   bool
	collections *storage.Collections
}

var _ storage.Adapter = (*Adapter)(nil)
var _ storage.Pinger = (*Adapter)(nil)

// New creates an adapter registering touched collections in collections.
// A nil registry gets a private one.
func New(collections *storage.Collections) *Adapter {
	if collections == nil {
		collections = storage.NewCollections()
	}
	return &Adapter{
		trees:       make(map[string]*btree.BTree),
		collections: collections,
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = true
	return nil
}

// Disconnect marks the adapter unusable. Stored data is kept, so a later
// Connect sees it again.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	return nil
}

func (a *Adapter) Ping(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
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
	return a.collections.Provision(ctx, a, collection, func(context.Context) error {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.tree(collection)
		return nil
	})
}

func (a *Adapter) GetNewID(ctx context.Context, collection string) (string, error) {
	if err := a.Ping(ctx); err != nil {
		return "", err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	for {
		id := storage.NewID()
		if _, ok := a.lookup(collection, id); !ok {
			return id, nil
		}
	}
}

func (a *Adapter) Get(ctx context.Context, collection, id string) (*storage.Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.connected {
		return nil, core.ErrNotConnected
	}
	e, ok := a.lookup(collection, id)
	if !ok {
		return nil, nil
	}
	return decode(e)
}

func (a *Adapter) Find(ctx context.Context, collection string, q query.Query, opts query.Options) ([]*storage.Record, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	if !a.connected {
		a.mu.RUnlock()
		return nil, core.ErrNotConnected
	}
	var entries []*entry
	if t, ok := a.trees[collection]; ok {
		entries = make([]*entry, 0, t.Len())
		t.Ascend(func(i btree.Item) bool {
			entries = append(entries, i.(*entry))
			return true
		})
	}
	a.mu.RUnlock()

	recs := make([]*storage.Record, 0, len(entries))
	for _, e := range entries {
		rec, err := decode(e)
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

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return "", core.ErrNotConnected
	}

	var existing *storage.Record
	if e, ok := a.lookup(collection, id); ok {
		existing = &storage.Record{ID: e.id, Token: e.token}
	}
	write, err := storage.CheckPrecondition(collection, id, action, existing, priorToken)
	if err != nil {
		return "", err
	}

	switch write {
	case storage.WritePut:
		token, stamped := storage.Stamp(id, attrs)
		doc, err := storage.EncodeAttributes(stamped)
		if err != nil {
			return "", err
		}
		a.tree(collection).ReplaceOrInsert(&entry{id: id, token: token, doc: doc})
		return token, nil
	case storage.WriteDelete:
		a.tree(collection).Delete(&entry{id: id})
	}
	return "", nil
}

func (a *Adapter) Clear(ctx context.Context, collection string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return core.ErrNotConnected
	}
	if t, ok := a.trees[collection]; ok {
		t.Clear(false)
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

// tree returns the tree for collection, creating it. Callers hold a.mu.
func (a *Adapter) tree(collection string) *btree.BTree {
	t, ok := a.trees[collection]
	if !ok {
		t = btree.New(degree)
		a.trees[collection] = t
	}
	return t
}

// lookup finds id in collection. Callers hold a.mu.
func (a *Adapter) lookup(collection, id string) (*entry, bool) {
	t, ok := a.trees[collection]
	if !ok {
		return nil, false
	}
	item := t.Get(&entry{id: id})
	if item == nil {
		return nil, false
	}
	return item.(*entry), true
}

func decode(e *entry) (*storage.Record, error) {
	rec, err := storage.DecodeRecord(e.doc)
	if err != nil {
		return nil, err
	}
	rec.ID = e.id
	rec.Token = e.token
	return rec, nil
}
