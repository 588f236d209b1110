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


// Package storagetest provides a conformance suite for storage.Adapter
// implementations. Every adapter package runs it from its own tests:
//
//	func TestConformance(t *testing.T) {
//	    storagetest.Run(t, func(t *testing.T) storage.Adapter {
//	        return memory.New(storage.NewCollections())
//	    })
//	}
package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/viewstore/core"
	"github.com/poiesic/viewstore/query"
	"github.com/poiesic/viewstore/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, unconnected adapter that shares no data with
// adapters returned by earlier calls.
type Factory func(t *testing.T) storage.Adapter

// Run executes the conformance suite against adapters built by newAdapter.
func Run(t *testing.T, newAdapter Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, a storage.Adapter)
	}{
		{"GetMissing", testGetMissing},
		{"CreateThenGet", testCreateThenGet},
		{"CreateConflict", testCreateConflict},
		{"UpdateCompareAndSwap", testUpdateCompareAndSwap},
		{"UpdateWithoutTokenOnExisting", testUpdateWithoutTokenOnExisting},
		{"UpdateVanished", testUpdateVanished},
		{"DeleteCompareAndSwap", testDeleteCompareAndSwap},
		{"DeleteAbsent", testDeleteAbsent},
		{"InvalidAction", testInvalidAction},
		{"FindQueryAndOptions", testFindQueryAndOptions},
		{"FindEmpty", testFindEmpty},
		{"ClearIsolatesCollections", testClearIsolatesCollections},
		{"ClearUnprovisioned", testClearUnprovisioned},
		{"ClearAll", testClearAll},
		{"NewIDUnique", testNewIDUnique},
		{"CheckConnectionConcurrent", testCheckConnectionConcurrent},
		{"ConcurrentUpdatesOneWins", testConcurrentUpdatesOneWins},
		{"DatesRoundTrip", testDatesRoundTrip},
	}

	t.Run("ConnectIdempotent", func(t *testing.T) {
		a := newAdapter(t)
		ctx := context.Background()
		require.NoError(t, a.Connect(ctx))
		require.NoError(t, a.Connect(ctx))
		require.NoError(t, a.Disconnect(ctx))
	})

	t.Run("DisconnectWithoutConnect", func(t *testing.T) {
		a := newAdapter(t)
		assert.NoError(t, a.Disconnect(context.Background()))
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAdapter(t)
			ctx := context.Background()
			require.NoError(t, a.Connect(ctx))
			t.Cleanup(func() { a.Disconnect(context.Background()) })
			tt.fn(t, a)
		})
	}
}

func commit(t *testing.T, a storage.Adapter, collection string, action core.Action, id string, attrs core.Attributes, prior string) (string, error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, a.CheckConnection(ctx, collection))
	return a.Commit(ctx, collection, action, id, attrs, prior)
}

func mustCreate(t *testing.T, a storage.Adapter, collection, id string, attrs core.Attributes) string {
	t.Helper()
	token, err := commit(t, a, collection, core.ActionCreate, id, attrs, "")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	return token
}

func get(t *testing.T, a storage.Adapter, collection, id string) *storage.Record {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, a.CheckConnection(ctx, collection))
	rec, err := a.Get(ctx, collection, id)
	require.NoError(t, err)
	return rec
}

func testGetMissing(t *testing.T, a storage.Adapter) {
	assert.Nil(t, get(t, a, "items", "nope"))
}

func testCreateThenGet(t *testing.T, a storage.Adapter) {
	token := mustCreate(t, a, "items", "1234", core.Attributes{"foo": "bar", "n": 2.0})

	rec := get(t, a, "items", "1234")
	require.NotNil(t, rec)
	assert.Equal(t, "1234", rec.ID)
	assert.Equal(t, token, rec.Token)
	assert.Equal(t, "bar", rec.Attributes.Get("foo"))
	assert.Equal(t, 2.0, rec.Attributes.Get("n"))
	assert.Equal(t, "1234", rec.Attributes.Get(storage.IDField))
	assert.Equal(t, token, rec.Attributes.Get(storage.TokenField))
}

func testCreateConflict(t *testing.T, a storage.Adapter) {
	mustCreate(t, a, "items", "1", core.Attributes{"v": "first"})

	_, err := commit(t, a, "items", core.ActionCreate, "1", core.Attributes{"v": "second"}, "")
	assert.True(t, core.IsConcurrency(err), "got %v", err)
	assert.Equal(t, "first", get(t, a, "items", "1").Attributes.Get("v"))
}

func testUpdateCompareAndSwap(t *testing.T, a storage.Adapter) {
	t1 := mustCreate(t, a, "items", "1", core.Attributes{"v": 1.0})

	t2, err := commit(t, a, "items", core.ActionUpdate, "1", core.Attributes{"v": 2.0}, t1)
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2, "every write produces a new token")

	_, err = commit(t, a, "items", core.ActionUpdate, "1", core.Attributes{"v": 3.0}, t1)
	assert.True(t, core.IsConcurrency(err), "stale token must be rejected, got %v", err)

	rec := get(t, a, "items", "1")
	assert.Equal(t, 2.0, rec.Attributes.Get("v"))
	assert.Equal(t, t2, rec.Token)
}

func testUpdateWithoutTokenOnExisting(t *testing.T, a storage.Adapter) {
	_, err := commit(t, a, "items", core.ActionUpdate, "1", core.Attributes{"v": "upsert"}, "")
	require.NoError(t, err, "update without token inserts when absent")

	_, err = commit(t, a, "items", core.ActionUpdate, "1", core.Attributes{"v": "racer"}, "")
	assert.True(t, core.IsConcurrency(err), "got %v", err)
	assert.Equal(t, "upsert", get(t, a, "items", "1").Attributes.Get("v"))
}

func testUpdateVanished(t *testing.T, a storage.Adapter) {
	token := mustCreate(t, a, "items", "1", core.Attributes{})
	_, err := commit(t, a, "items", core.ActionDelete, "1", nil, token)
	require.NoError(t, err)

	_, err = commit(t, a, "items", core.ActionUpdate, "1", core.Attributes{"v": 1.0}, token)
	assert.True(t, core.IsConcurrency(err), "got %v", err)
	assert.Nil(t, get(t, a, "items", "1"))
}

func testDeleteCompareAndSwap(t *testing.T, a storage.Adapter) {
	t1 := mustCreate(t, a, "items", "1", core.Attributes{})
	t2, err := commit(t, a, "items", core.ActionUpdate, "1", core.Attributes{"v": 1.0}, t1)
	require.NoError(t, err)

	_, err = commit(t, a, "items", core.ActionDelete, "1", nil, t1)
	assert.True(t, core.IsConcurrency(err), "stale delete must be rejected, got %v", err)
	require.NotNil(t, get(t, a, "items", "1"))

	token, err := commit(t, a, "items", core.ActionDelete, "1", nil, t2)
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Nil(t, get(t, a, "items", "1"))
}

func testDeleteAbsent(t *testing.T, a storage.Adapter) {
	_, err := commit(t, a, "items", core.ActionDelete, "ghost", nil, "")
	assert.NoError(t, err)
	_, err = commit(t, a, "items", core.ActionDelete, "ghost", nil, "some-token")
	assert.NoError(t, err)
}

func testInvalidAction(t *testing.T, a storage.Adapter) {
	_, err := commit(t, a, "items", core.ActionNone, "1", core.Attributes{}, "")
	assert.ErrorIs(t, err, core.ErrContractViolation)
	assert.Nil(t, get(t, a, "items", "1"))
}

func testFindQueryAndOptions(t *testing.T, a storage.Adapter) {
	for i, name := range []string{"carol", "alice", "dave", "bob"} {
		mustCreate(t, a, "people", name, core.Attributes{"name": name, "rank": float64(i), "team": []any{"x", name}})
	}
	ctx := context.Background()

	all, err := a.Find(ctx, "people", nil, query.Options{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol", "dave"}, recordIDs(all))

	sorted, err := a.Find(ctx, "people", query.Query{"rank": query.Query{"$gte": 1}}, query.Options{
		Sort:  []query.SortField{{Field: "name", Direction: query.Descending}},
		Skip:  1,
		Limit: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, recordIDs(sorted))

	or, err := a.Find(ctx, "people", query.Query{"$or": []any{query.Query{"name": "alice"}, query.Query{"team": "dave"}}}, query.Options{
		Sort: []query.SortField{{Field: "name", Direction: query.Ascending}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "dave"}, recordIDs(or))

	for _, rec := range all {
		assert.NotEmpty(t, rec.Token)
	}
}

func testFindEmpty(t *testing.T, a storage.Adapter) {
	ctx := context.Background()
	require.NoError(t, a.CheckConnection(ctx, "empty"))
	recs, err := a.Find(ctx, "empty", query.Query{"x": 1}, query.Options{})
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func testClearIsolatesCollections(t *testing.T, a storage.Adapter) {
	mustCreate(t, a, "a", "1", core.Attributes{})
	mustCreate(t, a, "b", "1", core.Attributes{})

	require.NoError(t, a.Clear(context.Background(), "a"))

	assert.Nil(t, get(t, a, "a", "1"))
	assert.NotNil(t, get(t, a, "b", "1"))
}

func testClearUnprovisioned(t *testing.T, a storage.Adapter) {
	assert.NoError(t, a.Clear(context.Background(), "never-seen"))
}

func testClearAll(t *testing.T, a storage.Adapter) {
	mustCreate(t, a, "a", "1", core.Attributes{})
	mustCreate(t, a, "b", "2", core.Attributes{})

	require.NoError(t, a.ClearAll(context.Background()))

	assert.Nil(t, get(t, a, "a", "1"))
	assert.Nil(t, get(t, a, "b", "2"))

	mustCreate(t, a, "a", "1", core.Attributes{})
	assert.NotNil(t, get(t, a, "a", "1"), "collections stay usable after ClearAll")
}

func testNewIDUnique(t *testing.T, a storage.Adapter) {
	ctx := context.Background()
	require.NoError(t, a.CheckConnection(ctx, "items"))
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id, err := a.GetNewID(ctx, "items")
		require.NoError(t, err)
		require.NotEmpty(t, id)
		require.False(t, seen[id], "id %q generated twice", id)
		seen[id] = true
	}
}

func testCheckConnectionConcurrent(t *testing.T, a storage.Adapter) {
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- a.CheckConnection(context.Background(), "fresh")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func testConcurrentUpdatesOneWins(t *testing.T, a storage.Adapter) {
	token := mustCreate(t, a, "items", "1", core.Attributes{"v": 0.0})

	const writers = 8
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := a.Commit(context.Background(), "items", core.ActionUpdate, "1", core.Attributes{"v": float64(i)}, token)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, core.IsConcurrency(err), "losers fail with a concurrency error, got %v", err)
	}
	assert.Equal(t, 1, wins)
}

func testDatesRoundTrip(t *testing.T, a storage.Adapter) {
	when := time.Date(2022, 7, 14, 9, 30, 0, 0, time.UTC)
	mustCreate(t, a, "items", "1", core.Attributes{"at": when, "nested": map[string]any{"list": []any{when}}})

	rec := get(t, a, "items", "1")
	assert.Equal(t, when, rec.Attributes.Get("at"))
	assert.Equal(t, when, rec.Attributes.Get("nested.list.0"))
}

func recordIDs(recs []*storage.Record) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids
}
