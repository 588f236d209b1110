package memory

import (
	"context"
	"testing"

	"github.com/poiesic/viewstore/core"
	"github.com/poiesic/viewstore/storage"
	"github.com/poiesic/viewstore/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Adapter {
		return New(storage.NewCollections())
	})
}

func TestAdapter_NotConnected(t *testing.T) {
	a := New(nil)
	ctx := context.Background()

	_, err := a.Get(ctx, "items", "1")
	assert.ErrorIs(t, err, core.ErrNotConnected)

	_, err = a.Commit(ctx, "items", core.ActionCreate, "1", core.Attributes{}, "")
	assert.ErrorIs(t, err, core.ErrNotConnected)

	assert.ErrorIs(t, a.CheckConnection(ctx, "items"), core.ErrNotConnected)
	assert.ErrorIs(t, a.Ping(ctx), core.ErrNotConnected)
}

func TestAdapter_StoredDataIsIsolated(t *testing.T) {
	a := New(nil)
	ctx := context.Background()
	require.NoError(t, a.Connect(ctx))

	attrs := core.Attributes{"tags": []any{"a"}}
	_, err := a.Commit(ctx, "items", core.ActionCreate, "1", attrs, "")
	require.NoError(t, err)
	attrs["tags"] = []any{"mutated"}
	assert.NotContains(t, attrs, storage.TokenField, "commit must not stamp the caller's map")

	rec, err := a.Get(ctx, "items", "1")
	require.NoError(t, err)
	rec.Attributes.Set("tags.0", "changed")

	again, err := a.Get(ctx, "items", "1")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Attributes.Get("tags.0"))
}

func TestAdapter_DataSurvivesReconnect(t *testing.T) {
	a := New(nil)
	ctx := context.Background()
	require.NoError(t, a.Connect(ctx))
	_, err := a.Commit(ctx, "items", core.ActionCreate, "1", core.Attributes{}, "")
	require.NoError(t, err)

	require.NoError(t, a.Disconnect(ctx))
	require.NoError(t, a.Connect(ctx))

	rec, err := a.Get(ctx, "items", "1")
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestAdapter_SharedRegistry(t *testing.T) {
	reg := storage.NewCollections()
	a := New(reg)
	ctx := context.Background()
	require.NoError(t, a.Connect(ctx))

	require.NoError(t, a.CheckConnection(ctx, "x"))
	require.NoError(t, a.CheckConnection(ctx, "y"))
	assert.Equal(t, []string{"x", "y"}, reg.Names())
	assert.True(t, reg.Provisioned(a, "x"))
}
