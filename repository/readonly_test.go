package repository

import (
	"context"
	"testing"

	"github.com/poiesic/viewstore/core"
	"github.com/poiesic/viewstore/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadOnly_GetMissingIsNil(t *testing.T) {
	repo, _ := newTestRepo(t)
	ro := NewReadOnly(repo)

	vm, err := ro.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, vm)

	vm, err = ro.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, vm)
}

func TestReadOnly_ViewModelsRejectMutation(t *testing.T) {
	repo, _ := newTestRepo(t)
	create(t, repo, "1", map[string]any{"foo": "bar"})
	ro := NewReadOnly(repo)
	ctx := context.Background()

	vm, err := ro.Get(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, vm)
	assert.True(t, vm.ReadOnly())
	assert.Equal(t, "bar", vm.Get("foo"))

	assert.ErrorIs(t, vm.Set("foo", "x"), core.ErrPermission)
	assert.ErrorIs(t, vm.SetAll(map[string]any{"foo": "x"}), core.ErrPermission)
	assert.ErrorIs(t, vm.Destroy(), core.ErrPermission)
	assert.ErrorIs(t, vm.Commit(ctx), core.ErrPermission)
	assert.Equal(t, "bar", vm.Get("foo"))
	assert.Equal(t, core.ActionUpdate, vm.Action())

	found, err := ro.Find(ctx, nil, query.Options{})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.ErrorIs(t, found[0].Set("foo", "x"), core.ErrPermission)

	one, err := ro.FindOne(ctx, query.Query{"foo": "bar"}, query.Options{})
	require.NoError(t, err)
	require.NotNil(t, one)
	assert.ErrorIs(t, one.Destroy(), core.ErrPermission)
}

func TestReadOnly_FindOneNone(t *testing.T) {
	repo, _ := newTestRepo(t)
	vm, err := NewReadOnly(repo).FindOne(context.Background(), query.Query{"x": 1}, query.Options{})
	require.NoError(t, err)
	assert.Nil(t, vm)
}

func TestReadOnly_MutationsNeverReachBackend(t *testing.T) {
	repo, spy := newTestRepo(t)
	create(t, repo, "1", nil)
	before := spy.commits.Load()
	ro := NewReadOnly(repo)
	ctx := context.Background()

	writable, err := repo.Get(ctx, "1")
	require.NoError(t, err)

	assert.ErrorIs(t, ro.Commit(ctx, writable), core.ErrPermission)
	assert.ErrorIs(t, ro.Clear(ctx), core.ErrPermission)
	assert.ErrorIs(t, ro.ClearAll(ctx), core.ErrPermission)
	assert.Equal(t, before, spy.commits.Load())

	still, err := ro.Get(ctx, "1")
	require.NoError(t, err)
	assert.NotNil(t, still)
}

func TestReadOnly_RestrictedViewModelCannotCommitThroughWriter(t *testing.T) {
	repo, _ := newTestRepo(t)
	create(t, repo, "1", nil)

	vm, err := NewReadOnly(repo).Get(context.Background(), "1")
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Commit(context.Background(), vm), core.ErrPermission)
}

func TestReadOnly_Lifecycle(t *testing.T) {
	repo, err := New(newSpy(), WithCollection("items"))
	require.NoError(t, err)
	defer repo.Release()
	ro := NewReadOnly(repo)

	var events []EventType
	ro.Subscribe(func(e Event) { events = append(events, e.Type) })

	ctx := context.Background()
	require.NoError(t, ro.Connect(ctx))
	require.NoError(t, ro.CheckConnection(ctx))
	require.NoError(t, ro.Disconnect(ctx))
	assert.Equal(t, []EventType{EventConnect, EventDisconnect}, events)
	assert.Same(t, repo, ro.Repository())
}
