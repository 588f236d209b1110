package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/viewstore/core"
	"github.com/poiesic/viewstore/query"
	"github.com/poiesic/viewstore/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sortByID() query.Options {
	return query.Options{Sort: []query.SortField{{Field: "id", Direction: query.Ascending}}}
}

func TestNew_RequiresAdapter(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrAdapterRequired)
	assert.ErrorIs(t, err, core.ErrContractViolation)
}

func TestConnect_IdempotentAndEmitsOnce(t *testing.T) {
	spy := newSpy()
	repo, err := New(spy, WithCollection("items"))
	require.NoError(t, err)
	defer repo.Release()

	var events []EventType
	repo.Subscribe(func(e Event) { events = append(events, e.Type) })

	ctx := context.Background()
	require.NoError(t, repo.Connect(ctx))
	require.NoError(t, repo.Connect(ctx))
	assert.Equal(t, Connected, repo.State())

	require.NoError(t, repo.Disconnect(ctx))
	require.NoError(t, repo.Disconnect(ctx))
	assert.Equal(t, Disconnected, repo.State())

	assert.Equal(t, []EventType{EventConnect, EventDisconnect}, events)
}

func TestConnect_FailureIsConnectionError(t *testing.T) {
	spy := newSpy()
	spy.connectErr = errors.New("refused")
	repo, err := New(spy)
	require.NoError(t, err)
	defer repo.Release()

	emitted := false
	repo.Subscribe(func(Event) { emitted = true })

	err = repo.Connect(context.Background())
	var connErr *core.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "memory", connErr.Backend)
	assert.Equal(t, Disconnected, repo.State())
	assert.False(t, emitted)
}

func TestConnect_StateIsConnectingWhileAdapterConnects(t *testing.T) {
	spy := newSpy()
	spy.connectStarted = make(chan struct{})
	spy.connectGate = make(chan struct{})
	repo, err := New(spy)
	require.NoError(t, err)
	defer repo.Release()

	done := make(chan error, 1)
	go func() { done <- repo.Connect(context.Background()) }()

	<-spy.connectStarted
	assert.Equal(t, Connecting, repo.State())

	close(spy.connectGate)
	require.NoError(t, <-done)
	assert.Equal(t, Connected, repo.State())
}

func TestConnect_ListenerMayDisconnect(t *testing.T) {
	repo, err := New(newSpy())
	require.NoError(t, err)
	defer repo.Release()
	ctx := context.Background()

	repo.Subscribe(func(e Event) {
		if e.Type == EventConnect {
			assert.NoError(t, e.Repository.Disconnect(ctx))
		}
	})
	require.NoError(t, repo.Connect(ctx))
	assert.Equal(t, Disconnected, repo.State())
}

func TestDisconnect_NeverConnected(t *testing.T) {
	repo, err := New(newSpy())
	require.NoError(t, err)
	defer repo.Release()

	emitted := false
	repo.Subscribe(func(Event) { emitted = true })
	assert.NoError(t, repo.Disconnect(context.Background()))
	assert.False(t, emitted)
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	repo, err := New(newSpy())
	require.NoError(t, err)
	defer repo.Release()

	calls := 0
	unsubscribe := repo.Subscribe(func(Event) { calls++ })
	unsubscribe()
	require.NoError(t, repo.Connect(context.Background()))
	assert.Zero(t, calls)
}

func TestGet_NeverWritten(t *testing.T) {
	repo, _ := newTestRepo(t)
	for _, id := range []string{"1", "abc", "1234"} {
		vm, err := repo.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, vm.ID())
		assert.Equal(t, core.ActionCreate, vm.Action())
		assert.Empty(t, vm.Token())
	}
}

func TestGet_GeneratesUniqueIDs(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.Get(ctx, "")
	require.NoError(t, err)
	second, err := repo.Get(ctx, "")
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID())
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, core.ActionCreate, first.Action())
	assert.Equal(t, first.ID(), first.Get("id"))
}

func TestCommit_CreateThenGet(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	vm, err := repo.Get(ctx, "1234")
	require.NoError(t, err)
	require.NoError(t, vm.Set("foo", "bar"))
	require.NoError(t, vm.Commit(ctx))

	assert.Equal(t, core.ActionUpdate, vm.Action())
	assert.NotEmpty(t, vm.Token())

	got, err := repo.Get(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, core.ActionUpdate, got.Action())
	assert.Equal(t, "bar", got.Get("foo"))
	assert.Equal(t, "1234", got.Get("id"))
	assert.Equal(t, vm.Token(), got.Token())
	assert.Equal(t, vm.Attributes(), got.Attributes())
}

func TestCommit_ConcurrentWritersOneLoses(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	create(t, repo, "1234", map[string]any{"foo": "bar"})

	v1, err := repo.Get(ctx, "1234")
	require.NoError(t, err)
	v2, err := repo.Get(ctx, "1234")
	require.NoError(t, err)
	require.Equal(t, v1.Token(), v2.Token())

	require.NoError(t, v1.Set("foo", "x"))
	require.NoError(t, v1.Commit(ctx))

	require.NoError(t, v2.Set("foo", "y"))
	err = v2.Commit(ctx)
	require.Error(t, err)
	assert.True(t, core.IsConcurrency(err))
	var concErr *core.ConcurrencyError
	require.ErrorAs(t, err, &concErr)
	assert.Equal(t, "1234", concErr.ID)
	assert.Equal(t, core.ActionUpdate, concErr.Action)

	got, err := repo.Get(ctx, "1234")
	require.NoError(t, err)
	assert.Equal(t, "x", got.Get("foo"))
}

func TestCommit_DuplicateCreate(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	a, err := repo.Get(ctx, "dup")
	require.NoError(t, err)
	b, err := repo.Get(ctx, "dup")
	require.NoError(t, err)

	require.NoError(t, a.Commit(ctx))
	assert.True(t, core.IsConcurrency(b.Commit(ctx)))
}

func TestCommit_UpdateEveryTimeNewToken(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	vm := create(t, repo, "1", nil)

	seen := map[string]bool{vm.Token(): true}
	for i := 0; i < 20; i++ {
		require.NoError(t, vm.Set("n", float64(i)))
		require.NoError(t, vm.Commit(ctx))
		require.False(t, seen[vm.Token()])
		seen[vm.Token()] = true
	}
}

func TestCommit_DestroyUnpersistedIsNoop(t *testing.T) {
	repo, spy := newTestRepo(t)
	ctx := context.Background()

	vm, err := repo.Get(ctx, "ghost")
	require.NoError(t, err)
	require.NoError(t, vm.Destroy())
	require.NoError(t, vm.Commit(ctx))

	assert.Zero(t, spy.commits.Load())
	got, err := repo.Get(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, core.ActionCreate, got.Action())
}

func TestCommit_Delete(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	create(t, repo, "1", map[string]any{"v": 1.0})

	vm, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	require.NoError(t, vm.Destroy())
	require.NoError(t, vm.Commit(ctx))
	assert.Equal(t, core.ActionNone, vm.Action())
	assert.Empty(t, vm.Token())

	got, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, core.ActionCreate, got.Action())
}

func TestCommit_DeleteAlreadyDeletedElsewhere(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	create(t, repo, "1", nil)

	v1, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	v2, err := repo.Get(ctx, "1")
	require.NoError(t, err)

	require.NoError(t, v1.Destroy())
	require.NoError(t, v1.Commit(ctx))
	require.NoError(t, v2.Destroy())
	assert.NoError(t, v2.Commit(ctx))
}

func TestCommit_DeleteWithStaleToken(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	create(t, repo, "1", nil)

	stale, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	fresh, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	require.NoError(t, fresh.Set("v", 2.0))
	require.NoError(t, fresh.Commit(ctx))

	require.NoError(t, stale.Destroy())
	assert.True(t, core.IsConcurrency(stale.Commit(ctx)))
}

func TestCommit_PendingActionNone(t *testing.T) {
	repo, spy := newTestRepo(t)
	ctx := context.Background()
	vm := create(t, repo, "1", nil)
	require.NoError(t, vm.Destroy())
	require.NoError(t, vm.Commit(ctx))
	before := spy.commits.Load()

	err := vm.Commit(ctx)
	assert.ErrorIs(t, err, core.ErrContractViolation)
	assert.Equal(t, before, spy.commits.Load(), "no backend call")
}

func TestCommit_UnknownAction(t *testing.T) {
	repo, spy := newTestRepo(t)
	vm, err := repo.Get(context.Background(), "1")
	require.NoError(t, err)
	vm.action = core.Action(42)

	assert.ErrorIs(t, repo.Commit(context.Background(), vm), core.ErrContractViolation)
	assert.Zero(t, spy.commits.Load())
}

func TestCommit_NilViewModel(t *testing.T) {
	repo, _ := newTestRepo(t)
	assert.ErrorIs(t, repo.Commit(context.Background(), nil), ErrViewModelRequired)
}

func TestCommit_NotConnected(t *testing.T) {
	repo, err := New(newSpy(), WithCollection("items"))
	require.NoError(t, err)
	defer repo.Release()

	vm, err := NewViewModel(map[string]any{"id": "1"}, repo)
	require.NoError(t, err)
	assert.ErrorIs(t, vm.Commit(context.Background()), core.ErrNotConnected)
}

func TestCommit_Stamp(t *testing.T) {
	repo, _ := newTestRepo(t, WithCommitStamp("commitStamp"))
	ctx := context.Background()

	vm := create(t, repo, "1", nil)
	stamp, ok := vm.Get("commitStamp").(int64)
	require.True(t, ok)
	assert.Positive(t, stamp)

	got, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, float64(stamp), got.Get("commitStamp"))
}

func TestFind_SetEquality(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	for _, id := range []string{"c", "a", "d", "b"} {
		create(t, repo, id, map[string]any{"name": id})
	}
	gone, err := repo.Get(ctx, "d")
	require.NoError(t, err)
	require.NoError(t, gone.Destroy())
	require.NoError(t, gone.Commit(ctx))

	vms, err := repo.Find(ctx, query.Query{}, query.Options{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, vms.IDs())
	for _, vm := range vms {
		assert.Equal(t, core.ActionUpdate, vm.Action())
		assert.NotEmpty(t, vm.Token())
	}
}

func TestFind_QueryAndOptions(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		create(t, repo, id, map[string]any{"n": float64(i), "tag": []any{"even", "odd"}[i%2]})
	}

	vms, err := repo.Find(ctx, query.Query{"tag": "even"}, query.Options{
		Sort:  []query.SortField{{Field: "n", Direction: query.Descending}},
		Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"e", "c"}, vms.IDs())

	vms, err = repo.Find(ctx, query.Query{"n": query.Query{"$in": []any{1, 3}}}, sortByID())
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, vms.IDs())
}

func TestFind_EmptyIsNotNil(t *testing.T) {
	repo, _ := newTestRepo(t)
	vms, err := repo.Find(context.Background(), query.Query{"x": 1}, query.Options{})
	require.NoError(t, err)
	assert.NotNil(t, vms)
	assert.Empty(t, vms)
}

func TestFind_UnsupportedOperator(t *testing.T) {
	repo, _ := newTestRepo(t)
	create(t, repo, "1", nil)
	_, err := repo.Find(context.Background(), query.Query{"x": query.Query{"$near": 1}}, query.Options{})
	assert.ErrorIs(t, err, query.ErrUnsupported)
}

func TestFindOne(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	vm, err := repo.FindOne(ctx, nil, query.Options{})
	require.NoError(t, err)
	assert.Nil(t, vm)

	create(t, repo, "b", map[string]any{"v": "two"})
	create(t, repo, "a", map[string]any{"v": "one"})

	vm, err = repo.FindOne(ctx, query.Query{"v": "two"}, query.Options{})
	require.NoError(t, err)
	require.NotNil(t, vm)
	assert.Equal(t, "b", vm.ID())

	vm, err = repo.FindOne(ctx, nil, sortByID())
	require.NoError(t, err)
	require.NotNil(t, vm)
	assert.Equal(t, "a", vm.ID())
}

func TestClear_IsolatesCollections(t *testing.T) {
	a, _ := newTestRepo(t)
	b := a.ForCollection("other")
	ctx := context.Background()
	create(t, a, "1", nil)
	create(t, b, "1", nil)

	require.NoError(t, a.Clear(ctx))

	va, err := a.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, core.ActionCreate, va.Action())
	vb, err := b.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, core.ActionUpdate, vb.Action())
}

func TestClear_NeverProvisioned(t *testing.T) {
	repo, _ := newTestRepo(t)
	assert.NoError(t, repo.ForCollection("never").Clear(context.Background()))
}

func TestClearAll(t *testing.T) {
	a, _ := newTestRepo(t)
	b := a.ForCollection("other")
	ctx := context.Background()
	create(t, a, "1", nil)
	create(t, b, "2", nil)

	require.NoError(t, a.ClearAll(ctx))

	all, err := a.Find(ctx, nil, query.Options{})
	require.NoError(t, err)
	assert.Empty(t, all)
	all, err = b.Find(ctx, nil, query.Options{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestForCollection_SharesSession(t *testing.T) {
	repo, _ := newTestRepo(t, WithCommitStamp("stamp"))
	other := repo.ForCollection("other")

	assert.Equal(t, "other", other.Collection())
	assert.Equal(t, "items", repo.Collection())
	assert.Equal(t, Connected, other.State())

	vm := create(t, other, "1", nil)
	assert.True(t, vm.Has("stamp"))

	require.NoError(t, other.Disconnect(context.Background()))
	assert.Equal(t, Disconnected, repo.State())
}

func TestRepository_RequiresCollection(t *testing.T) {
	repo, err := New(newSpy())
	require.NoError(t, err)
	defer repo.Release()
	require.NoError(t, repo.Connect(context.Background()))

	_, err = repo.Get(context.Background(), "1")
	assert.ErrorIs(t, err, storage.ErrCollectionRequired)
	assert.ErrorIs(t, repo.Clear(context.Background()), storage.ErrCollectionRequired)
}
