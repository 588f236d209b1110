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


// Package storage provides the storage abstraction layer for viewstore.
//
// Adapter is the capability set a storage engine implements so repositories
// can sit on top of it: session lifecycle, idempotent per-collection
// provisioning, id generation, get, find, conditional commit, and clear.
// The backends live in subpackages:
//
//   - memory: process-local B-trees, the reference implementation
//   - badger: BadgerDB key-value store, on disk or in memory
//   - sqlite: one SQLite table per collection
//   - filestore: a single snapshot file encoded with rezi
//
// # Optimistic Concurrency
//
// Every stored record carries a concurrency token under TokenField. A
// commit names the token it was read with, and the adapter applies it only
// if the stored token still matches. CheckPrecondition holds the rules, so
// adapters differ only in how they make the check-and-write atomic.
//
// # Usage
//
//	adapter := memory.New(storage.NewCollections())
//	if err := adapter.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer adapter.Disconnect(ctx)
//
// # Thread Safety
//
// All adapter implementations must be thread-safe and support concurrent
// access from multiple goroutines.
package storage
