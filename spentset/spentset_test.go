package spentset

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memSet is a minimal in-process Set used to test the Set contract's
// concurrency semantics without a live Redis instance. RedisSet itself has
// no test in this module.
type memSet struct {
	mu   sync.Mutex
	data map[string]struct{}
}

func newMemSet() *memSet {
	return &memSet{data: make(map[string]struct{})}
}

func (m *memSet) IsSpent(_ context.Context, serialHex string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[serialHex]
	return ok, nil
}

func (m *memSet) CheckAndMark(_ context.Context, serialHex string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[serialHex]; ok {
		return false, nil
	}
	m.data[serialHex] = struct{}{}
	return true, nil
}

func (m *memSet) Health(context.Context) error { return nil }

var _ Set = (*memSet)(nil)

func TestCheckAndMarkIsExclusive(t *testing.T) {
	s := newMemSet()
	ctx := context.Background()

	const attempts = 32
	results := make(chan bool, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.CheckAndMark(ctx, "deadbeef", time.Hour)
			require.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	require.Equal(t, 1, wins, "exactly one concurrent CheckAndMark must win the race")
}

func TestIsSpentReflectsCheckAndMark(t *testing.T) {
	s := newMemSet()
	ctx := context.Background()

	spent, err := s.IsSpent(ctx, "abc123")
	require.NoError(t, err)
	require.False(t, spent)

	ok, err := s.CheckAndMark(ctx, "abc123", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	spent, err = s.IsSpent(ctx, "abc123")
	require.NoError(t, err)
	require.True(t, spent)
}
