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
	"sync"

	"github.com/poiesic/viewstore/core"
)

// CommitAll commits vms concurrently on the repository's worker pool. Each
// view model succeeds or fails on its own; the returned error joins every
// failure, so errors.Is(err, core.ErrConcurrency) reports whether any
// commit lost a race. Every view model must belong to r's collection and
// appear only once; a batch with duplicates is rejected before any commit.
func (r *Repository) CommitAll(ctx context.Context, vms []*ViewModel) error {
	if len(vms) == 0 {
		return nil
	}
	seen := make(map[*ViewModel]struct{}, len(vms))
	for _, vm := range vms {
		if vm == nil {
			continue
		}
		if _, dup := seen[vm]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateViewModel, vm.id)
		}
		seen[vm] = struct{}{}
	}

	errs := make([]error, len(vms))
	var wg sync.WaitGroup
	for i, vm := range vms {
		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			errs[i] = r.Commit(ctx, vm)
		})
		if err != nil {
			wg.Done()
			errs[i] = core.WrapBackend("submit commit", err)
		}
	}
	wg.Wait()

	joined := errors.Join(errs...)
	if joined != nil {
		r.logger.Debug("batch commit finished with failures", "collection", r.collection, "count", len(vms))
	}
	return joined
}
