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

	"github.com/poiesic/viewstore/core"
	"github.com/poiesic/viewstore/query"
)

// Reader is the read side of a repository.
type Reader interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	CheckConnection(ctx context.Context) error
	Get(ctx context.Context, id string) (*ViewModel, error)
	Find(ctx context.Context, q query.Query, opts query.Options) (ViewModels, error)
	FindOne(ctx context.Context, q query.Query, opts query.Options) (*ViewModel, error)
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Writer is a repository with mutation capability.
type Writer interface {
	Reader
	Committer
	Clear(ctx context.Context) error
	ClearAll(ctx context.Context) error
}

var (
	_ Writer = (*Repository)(nil)
	_ Writer = (*ReadOnly)(nil)
)

// ReadOnly narrows a repository to reads. Commit, Clear and ClearAll fail
// with core.ErrPermission without reaching the backend, Get reports a
// missing record as nil, and every returned view model rejects Set, SetAll
// and Destroy.
type ReadOnly struct {
	repo *Repository
}

// NewReadOnly wraps repo.
func NewReadOnly(repo *Repository) *ReadOnly {
	return &ReadOnly{repo: repo}
}

// Repository returns the wrapped repository.
func (ro *ReadOnly) Repository() *Repository { return ro.repo }

// Connect opens the shared backend session.
func (ro *ReadOnly) Connect(ctx context.Context) error {
	return ro.repo.Connect(ctx)
}

// Disconnect closes the shared backend session.
func (ro *ReadOnly) Disconnect(ctx context.Context) error {
	return ro.repo.Disconnect(ctx)
}

// CheckConnection runs the backend provisioning for the collection.
func (ro *ReadOnly) CheckConnection(ctx context.Context) error {
	return ro.repo.CheckConnection(ctx)
}

// Subscribe registers fn for connect and disconnect events.
func (ro *ReadOnly) Subscribe(fn func(Event)) (unsubscribe func()) {
	return ro.repo.Subscribe(fn)
}

// Get returns the stored view model for id, or nil when it does not exist.
func (ro *ReadOnly) Get(ctx context.Context, id string) (*ViewModel, error) {
	vm, err := ro.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if vm.Action() == core.ActionCreate {
		return nil, nil
	}
	return ro.restrict(vm), nil
}

// Find returns the matches of q as read-only view models.
func (ro *ReadOnly) Find(ctx context.Context, q query.Query, opts query.Options) (ViewModels, error) {
	vms, err := ro.repo.Find(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	for _, vm := range vms {
		ro.restrict(vm)
	}
	return vms, nil
}

// FindOne returns the first match of q as a read-only view model, or nil.
func (ro *ReadOnly) FindOne(ctx context.Context, q query.Query, opts query.Options) (*ViewModel, error) {
	vm, err := ro.repo.FindOne(ctx, q, opts)
	if err != nil || vm == nil {
		return nil, err
	}
	return ro.restrict(vm), nil
}

// Commit always fails with core.ErrPermission.
func (ro *ReadOnly) Commit(ctx context.Context, vm *ViewModel) error {
	return core.ErrPermission
}

// Clear always fails with core.ErrPermission.
func (ro *ReadOnly) Clear(ctx context.Context) error {
	return core.ErrPermission
}

// ClearAll always fails with core.ErrPermission.
func (ro *ReadOnly) ClearAll(ctx context.Context) error {
	return core.ErrPermission
}

func (ro *ReadOnly) restrict(vm *ViewModel) *ViewModel {
	vm.readOnly = true
	vm.repo = ro
	return vm
}
