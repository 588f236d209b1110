package badger

import (
	"context"
	"strconv"
	"testing"

	"github.com/poiesic/viewstore/core"
	"github.com/poiesic/viewstore/query"
	"github.com/poiesic/viewstore/storage"
	"github.com/poiesic/viewstore/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConformance_InMemory(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Adapter {
		return New(storage.NewCollections(), WithInMemory())
	})
}

func TestConformance_OnDisk(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Adapter {
		return New(storage.NewCollections(), WithPath(t.TempDir()))
	})
}

func TestAdapter_SequentialIDs(t *testing.T) {
	ctx := context.Background()
	a, err := NewMemoryAdapter(ctx)
	require.NoError(t, err)
	defer a.Disconnect(ctx)

	require.NoError(t, a.CheckConnection(ctx, "items"))
	first, err := a.GetNewID(ctx, "items")
	require.NoError(t, err)
	second, err := a.GetNewID(ctx, "items")
	require.NoError(t, err)

	n1, err := strconv.ParseUint(first, 10, 64)
	require.NoError(t, err)
	n2, err := strconv.ParseUint(second, 10, 64)
	require.NoError(t, err)
	assert.Greater(t, n1, uint64(0))
	assert.Greater(t, n2, n1)
}

func TestAdapter_NewIDSkipsUsedIDs(t *testing.T) {
	ctx := context.Background()
	a, err := NewMemoryAdapter(ctx)
	require.NoError(t, err)
	defer a.Disconnect(ctx)

	require.NoError(t, a.CheckConnection(ctx, "items"))
	for i := 1; i <= 3; i++ {
		_, err := a.Commit(ctx, "items", core.ActionCreate, strconv.Itoa(i), core.Attributes{}, "")
		require.NoError(t, err)
	}

	id, err := a.GetNewID(ctx, "items")
	require.NoError(t, err)
	assert.NotContains(t, []string{"1", "2", "3"}, id)
}

func TestAdapter_PersistsAcrossReconnect(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := New(nil, WithPath(dir))
	require.NoError(t, a.Connect(ctx))
	require.NoError(t, a.CheckConnection(ctx, "items"))
	token, err := a.Commit(ctx, "items", core.ActionCreate, "k", core.Attributes{"v": "kept"}, "")
	require.NoError(t, err)
	require.NoError(t, a.Disconnect(ctx))

	b := New(nil, WithPath(dir))
	require.NoError(t, b.Connect(ctx))
	defer b.Disconnect(ctx)

	rec, err := b.Get(ctx, "items", "k")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, token, rec.Token)
	assert.Equal(t, "kept", rec.Attributes.Get("v"))

	recs, err := b.Find(ctx, "items", query.Query{"v": "kept"}, query.Options{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	a := New(nil)

	_, err := a.Get(ctx, "items", "1")
	assert.ErrorIs(t, err, core.ErrNotConnected)
	_, err = a.Commit(ctx, "items", core.ActionCreate, "1", core.Attributes{}, "")
	assert.ErrorIs(t, err, core.ErrNotConnected)
	assert.ErrorIs(t, a.Clear(ctx, "items"), core.ErrNotConnected)
	assert.ErrorIs(t, a.Ping(ctx), core.ErrNotConnected)
}

func TestAdapter_ConnectFailure(t *testing.T) {
	err := New(nil, WithPath("")).Connect(context.Background())
	var connErr *core.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, Name, connErr.Backend)
}
