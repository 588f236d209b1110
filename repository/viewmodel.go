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
	"encoding/json"
	"fmt"

	"github.com/poiesic/viewstore/core"
	"github.com/poiesic/viewstore/storage"
)

// Committer commits view models. *Repository and *ReadOnly satisfy it.
type Committer interface {
	Commit(ctx context.Context, vm *ViewModel) error
}

// ViewModel is one in-flight record: a mutable attribute bag plus the
// action the next commit will attempt. It is owned by the caller between
// retrieval and commit and is not safe for concurrent use.
type ViewModel struct {
	id         string
	attributes core.Attributes
	action     core.Action
	persisted  bool
	readOnly   bool
	repo       Committer
}

// NewViewModel creates a view model pending creation. The id is taken from
// the "id" attribute when it is a string. attrs is copied.
func NewViewModel(attrs map[string]any, repo Committer) (*ViewModel, error) {
	if repo == nil {
		return nil, fmt.Errorf("%w: view model requires a repository", core.ErrContractViolation)
	}
	cloned := core.Attributes(attrs).Clone()
	id, _ := cloned[storage.IDField].(string)
	return &ViewModel{
		id:         id,
		attributes: cloned,
		action:     core.ActionCreate,
		repo:       repo,
	}, nil
}

// newStored wraps a record read from the backend.
func newStored(rec *storage.Record, repo Committer) *ViewModel {
	attrs := rec.Attributes
	if attrs == nil {
		attrs = core.Attributes{}
	}
	attrs[storage.IDField] = rec.ID
	if rec.Token != "" {
		attrs[storage.TokenField] = rec.Token
	}
	return &ViewModel{
		id:         rec.ID,
		attributes: attrs,
		action:     core.ActionUpdate,
		persisted:  true,
		repo:       repo,
	}
}

// ID returns the record id, generated or caller supplied.
func (vm *ViewModel) ID() string { return vm.id }

// Action returns what the next commit will attempt.
func (vm *ViewModel) Action() core.Action { return vm.action }

// Token returns the concurrency token the view model was read or last
// committed with, or "" if it was never persisted.
func (vm *ViewModel) Token() string {
	token, _ := vm.attributes[storage.TokenField].(string)
	return token
}

// ReadOnly reports whether mutations are rejected.
func (vm *ViewModel) ReadOnly() bool { return vm.readOnly }

// Get returns the value at the dotted path, or nil if absent.
func (vm *ViewModel) Get(path string) any {
	return vm.attributes.Get(path)
}

// Has reports whether the value at path is present and not nil.
func (vm *ViewModel) Has(path string) bool {
	return vm.attributes.Has(path)
}

// Set stores value at the dotted path. No schema is enforced.
func (vm *ViewModel) Set(path string, value any) error {
	if vm.readOnly {
		return core.ErrPermission
	}
	vm.attributes.Set(path, value)
	return nil
}

// SetAll stores every entry of values, each key being a dotted path.
func (vm *ViewModel) SetAll(values map[string]any) error {
	if vm.readOnly {
		return core.ErrPermission
	}
	vm.attributes.Merge(values)
	return nil
}

// Destroy marks the view model for deletion on the next commit. Calling it
// again has no further effect.
func (vm *ViewModel) Destroy() error {
	if vm.readOnly {
		return core.ErrPermission
	}
	vm.action = core.ActionDelete
	return nil
}

// Commit commits the view model through the repository it came from.
func (vm *ViewModel) Commit(ctx context.Context) error {
	return vm.repo.Commit(ctx, vm)
}

// Attributes returns a deep copy of the attribute bag.
func (vm *ViewModel) Attributes() core.Attributes {
	return vm.attributes.Clone()
}

// ToJSON returns a deep snapshot of the attributes that went through a JSON
// round trip, with ISO-8601 strings turned back into time.Time.
func (vm *ViewModel) ToJSON() (map[string]any, error) {
	return core.Snapshot(vm.attributes)
}

// MarshalJSON encodes the view model as its attributes.
func (vm *ViewModel) MarshalJSON() ([]byte, error) {
	return core.MarshalJSON(map[string]any(vm.attributes))
}

// ViewModels is a materialized find result.
type ViewModels []*ViewModel

// ToJSON returns the snapshot of every view model in order.
func (vms ViewModels) ToJSON() ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(vms))
	for _, vm := range vms {
		snap, err := vm.ToJSON()
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// IDs returns the ids of the view models in order.
func (vms ViewModels) IDs() []string {
	ids := make([]string, len(vms))
	for i, vm := range vms {
		ids[i] = vm.id
	}
	return ids
}

var _ json.Marshaler = (*ViewModel)(nil)
