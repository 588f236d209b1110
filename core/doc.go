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


// Package core defines the types shared by every layer of viewstore: the
// schemaless Attributes bag carried by view models, the pending Action of a
// view model, the date-aware JSON codec used to snapshot attributes, and the
// error taxonomy.
//
// # Errors
//
// ConcurrencyError is the only error callers are expected to recover from:
//
//	for {
//	    vm, err := repo.Get(ctx, id)
//	    ...
//	    vm.Set("count", n+1)
//	    err = repo.Commit(ctx, vm)
//	    if !errors.Is(err, core.ErrConcurrency) {
//	        return err
//	    }
//	}
//
// ErrContractViolation and ErrPermission signal caller bugs. Everything else
// is a BackendError or ConnectionError passed through from the storage
// engine.
package core
