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


// Package repository manages view models over a storage adapter.
//
// A Repository is bound to one collection. Get and Find hand out view
// models; the caller mutates them and commits. Every commit is an
// optimistic compare-and-swap on the record's concurrency token, so two
// writers that read the same version cannot both win:
//
//	for {
//	    vm, err := repo.Get(ctx, "1234")
//	    if err != nil {
//	        return err
//	    }
//	    vm.Set("visits", visits(vm)+1)
//	    err = vm.Commit(ctx)
//	    if errors.Is(err, core.ErrConcurrency) {
//	        continue
//	    }
//	    return err
//	}
//
// ReadOnly wraps a Repository for consumers that must never write.
package repository
