package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/poiesic/viewstore/core"
	"github.com/poiesic/viewstore/storage"
	"github.com/poiesic/viewstore/storage/memory"
	"github.com/stretchr/testify/require"
)

// spyAdapter wraps the memory adapter, counting commits and injecting
// failures.
type spyAdapter struct {
	*memory.Adapter
	commits    atomic.Int32
	connectErr error

	// When connectGate is set, Connect closes connectStarted and waits for
	// the gate before connecting.
	connectStarted chan struct{}
	connectGate    chan struct{}

	mu      sync.Mutex
	pingErr error
}

func (s *spyAdapter) Connect(ctx context.Context) error {
	if s.connectGate != nil {
		close(s.connectStarted)
		<-s.connectGate
	}
	if s.connectErr != nil {
		return s.connectErr
	}
	return s.Adapter.Connect(ctx)
}

func (s *spyAdapter) Commit(ctx context.Context, collection string, action core.Action, id string, attrs core.Attributes, priorToken string) (string, error) {
	s.commits.Add(1)
	return s.Adapter.Commit(ctx, collection, action, id, attrs, priorToken)
}

func (s *spyAdapter) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pingErr != nil {
		return s.pingErr
	}
	return s.Adapter.Ping(ctx)
}

func (s *spyAdapter) failPing(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pingErr = err
}

func newSpy() *spyAdapter {
	return &spyAdapter{Adapter: memory.New(storage.NewCollections())}
}

// newTestRepo creates a connected repository on a fresh memory adapter.
func newTestRepo(t *testing.T, opts ...Option) (*Repository, *spyAdapter) {
	t.Helper()
	spy := newSpy()
	opts = append([]Option{WithCollection("items")}, opts...)
	repo, err := New(spy, opts...)
	require.NoError(t, err)
	require.NoError(t, repo.Connect(context.Background()))
	t.Cleanup(func() {
		repo.Disconnect(context.Background())
		repo.Release()
	})
	return repo, spy
}

// create commits a new record with attrs under id.
func create(t *testing.T, repo *Repository, id string, attrs map[string]any) *ViewModel {
	t.Helper()
	ctx := context.Background()
	vm, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, core.ActionCreate, vm.Action())
	require.NoError(t, vm.SetAll(attrs))
	require.NoError(t, vm.Commit(ctx))
	return vm
}
