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


// Package viewstore persists schemaless view models in interchangeable
// storage backends with optimistic concurrency.
//
// Open a store from configuration, then take a write or read repository
// for a collection:
//
//	store, err := viewstore.Open(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer store.Close(ctx)
//
//	people := store.Write("people")
//	vm, err := people.Get(ctx, "1234")
//	if err != nil {
//	    return err
//	}
//	vm.Set("name", "Ada")
//	if err := vm.Commit(ctx); errors.Is(err, core.ErrConcurrency) {
//	    // someone else won; fetch again and reapply
//	}
//
// Backends are selected by tag: "memory", "badger", "sqlite" or "file".
package viewstore
