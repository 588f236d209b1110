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


package storage

import (
	"context"

	"github.com/poiesic/viewstore/core"
	"github.com/poiesic/viewstore/query"
)

const (
	// IDField is the attribute holding a record's id.
	IDField = "id"

	// TokenField is the attribute holding a record's concurrency token. It is
	// a regular, visible attribute; callers must not use the name for their
	// own data.
	TokenField = "_hash"
)

// Record is a stored record as read from a backend.
type Record struct {
	ID    string
	Token string
	// Attributes holds every stored field, including IDField and TokenField.
	Attributes core.Attributes
}

// Adapter is the capability set every storage backend implements. One
// Adapter holds one backend session, shared by every repository bound to
// it; operations name the collection they act on.
//
// Implementations must be safe for concurrent use.
type Adapter interface {
	// Name identifies the backend kind, e.g. "memory" or "badger".
	Name() string

	// Connect opens the backend session. Calling it on a connected adapter
	// is a no-op.
	Connect(ctx context.Context) error

	// Disconnect releases the backend session. Calling it on an adapter that
	// was never connected is a no-op.
	Disconnect(ctx context.Context) error

	// CheckConnection runs backend-specific provisioning for collection
	// (tables, prefixes) exactly once per adapter and records the collection
	// as touched. It is safe to call repeatedly and concurrently.
	CheckConnection(ctx context.Context, collection string) error

	// GetNewID returns an id that is unused in collection.
	GetNewID(ctx context.Context, collection string) (string, error)

	// Get returns the record with the given id, or nil when it does not
	// exist. Absence is not an error.
	Get(ctx context.Context, collection, id string) (*Record, error)

	// Find returns the records of collection matching q, paged and ordered
	// by opts. The result is materialized and never nil.
	Find(ctx context.Context, collection string, q query.Query, opts query.Options) ([]*Record, error)

	// Commit performs action for the record id as a compare-and-swap on
	// priorToken, following CheckPrecondition. On a successful create or
	// update the stored attributes carry a fresh token under TokenField and
	// that token is returned. Delete returns the empty token.
	Commit(ctx context.Context, collection string, action core.Action, id string, attrs core.Attributes, priorToken string) (string, error)

	// Clear removes every record of collection. Clearing a collection that
	// was never provisioned succeeds.
	Clear(ctx context.Context, collection string) error

	// ClearAll removes every record of every collection touched through this
	// adapter. It exists for tests and teardown; never use it in production.
	ClearAll(ctx context.Context) error
}

// Pinger is implemented by adapters that can probe their session for a
// heartbeat.
type Pinger interface {
	Ping(ctx context.Context) error
}
