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
	"fmt"
	"time"

	"github.com/poiesic/viewstore/core"
	"github.com/poiesic/viewstore/storage"
)

// Commit persists vm according to its pending action.
//
// A create fails with a concurrency error if the id already exists. An
// update is a compare-and-swap on the token vm was read with; without a
// token it only succeeds when no record exists yet. A delete is gated on the
// token too, except that deleting a never persisted view model, or a record
// that is already gone, succeeds without effect.
//
// On success a create or update leaves vm pending update with the new token
// and a delete leaves it with no pending action. Any pending action other
// than create, update or delete is a contract violation and reaches no
// backend.
func (r *Repository) Commit(ctx context.Context, vm *ViewModel) error {
	if vm == nil {
		return ErrViewModelRequired
	}
	if vm.readOnly {
		return core.ErrPermission
	}
	if !vm.action.Committable() {
		return fmt.Errorf("%w: cannot commit %s with pending action %s", core.ErrContractViolation, vm.id, vm.action)
	}
	if vm.id == "" {
		return storage.ErrIDRequired
	}
	if err := r.CheckConnection(ctx); err != nil {
		return err
	}

	prior := vm.Token()
	if vm.action == core.ActionDelete && !vm.persisted && prior == "" {
		r.logger.Debug("skipping delete of unpersisted view model", "collection", r.collection, "id", vm.id)
		vm.action = core.ActionNone
		return nil
	}

	if r.commitStamp != "" && vm.action != core.ActionDelete {
		vm.attributes.Set(r.commitStamp, time.Now().UnixMilli())
	}

	token, err := r.adapter.Commit(ctx, r.collection, vm.action, vm.id, vm.attributes, prior)
	if err != nil {
		if core.IsConcurrency(err) {
			r.logger.Debug("commit lost concurrency race", "collection", r.collection, "id", vm.id, "action", vm.action)
		}
		return core.WrapBackend("commit", err)
	}

	switch vm.action {
	case core.ActionDelete:
		delete(vm.attributes, storage.TokenField)
		vm.action = core.ActionNone
		vm.persisted = false
	default:
		vm.attributes[storage.IDField] = vm.id
		vm.attributes[storage.TokenField] = token
		vm.action = core.ActionUpdate
		vm.persisted = true
	}
	return nil
}
