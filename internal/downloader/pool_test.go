package downloader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

// fakeFetcher serves ranges of data from memory. failures maps a chunk start
// offset to the number of attempts that fail before one succeeds; a negative
// value fails every attempt.
type fakeFetcher struct {
	data     []byte
	failures map[int64]int
	delay    time.Duration

	mu       sync.Mutex
	attempts map[int64]int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeFetcher(data []byte) *fakeFetcher {
	return &fakeFetcher{
		data:     data,
		failures: make(map[int64]int),
		attempts: make(map[int64]int),
	}
}

func (f *fakeFetcher) FetchRange(ctx context.Context, start, end int64) ([]byte, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxInFlight.Load()
		if cur <= seen || f.maxInFlight.CompareAndSwap(seen, cur) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.attempts[start]++
	n := f.attempts[start]
	fails, ok := f.failures[start]
	f.mu.Unlock()

	if ok && (fails < 0 || n <= fails) {
		return nil, errInjected
	}
	return append([]byte(nil), f.data[start:end+1]...), nil
}

func (f *fakeFetcher) attemptsFor(start int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[start]
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestPool(f Fetcher, cfg PoolConfig) (*Pool, *sleepRecorder) {
	rec := &sleepRecorder{}
	p := NewPool(f, cfg)
	p.sleep = rec.sleep
	return p, rec
}

func TestPoolFetchesAllChunks(t *testing.T) {
	data := patternBytes(10*1024 + 17)
	session, err := NewSession(int64(len(data)), 1024)
	require.NoError(t, err)
	f := newFakeFetcher(data)
	p, _ := newTestPool(f, PoolConfig{Concurrency: 4, MaxRetries: 2})
	agg := NewAggregator(session, time.Hour)

	require.NoError(t, p.Run(context.Background(), session, agg))

	got, err := session.Result()
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, int64(len(data)), agg.Downloaded())
	for _, c := range session.Chunks {
		assert.Equal(t, ChunkSucceeded, c.Status)
		assert.Equal(t, 0, c.Retries)
		assert.Equal(t, 1, f.attemptsFor(c.Start))
	}
}

func TestPoolRetriesWithLinearBackoff(t *testing.T) {
	for _, failuresBeforeSuccess := range []int{1, 2, 3, 5} {
		data := patternBytes(4096)
		session, err := NewSession(int64(len(data)), 1024)
		require.NoError(t, err)
		f := newFakeFetcher(data)
		f.failures[2048] = failuresBeforeSuccess
		p, rec := newTestPool(f, PoolConfig{Concurrency: 2, MaxRetries: 5, BackoffBase: 100 * time.Millisecond})

		require.NoError(t, p.Run(context.Background(), session, nil))

		chunk := session.Chunks[2]
		assert.Equal(t, ChunkSucceeded, chunk.Status)
		assert.Equal(t, failuresBeforeSuccess, chunk.Retries)
		assert.Equal(t, failuresBeforeSuccess+1, f.attemptsFor(2048))

		require.Len(t, rec.delays, failuresBeforeSuccess)
		for i, d := range rec.delays {
			assert.Equal(t, time.Duration(i+1)*100*time.Millisecond, d)
			if i > 0 {
				assert.GreaterOrEqual(t, d, rec.delays[i-1])
			}
		}

		got, err := session.Result()
		require.NoError(t, err)
		assert.Equal(t, data, got)
	}
}

func TestPoolExhaustedChunkDoesNotStopOthers(t *testing.T) {
	data := patternBytes(8 * 512)
	session, err := NewSession(int64(len(data)), 512)
	require.NoError(t, err)
	f := newFakeFetcher(data)
	f.failures[3*512] = -1
	p, rec := newTestPool(f, PoolConfig{Concurrency: 3, MaxRetries: 5, BackoffBase: time.Millisecond})

	err = p.Run(context.Background(), session, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionFailed)

	var sessErr *SessionError
	require.True(t, errors.As(err, &sessErr))
	require.Len(t, sessErr.Failed, 1)
	assert.Equal(t, 3, sessErr.Failed[0].Index)
	assert.Equal(t, 6, sessErr.Failed[0].Attempts)
	assert.ErrorIs(t, err, errInjected)

	assert.Equal(t, 6, f.attemptsFor(3*512))
	assert.Len(t, rec.delays, 5)
	assert.Equal(t, 1, session.FailedChunks())
	for _, c := range session.Chunks {
		if c.Index == 3 {
			assert.Equal(t, ChunkFailed, c.Status)
			assert.Equal(t, 5, c.Retries)
			continue
		}
		assert.Equal(t, ChunkSucceeded, c.Status, "chunk %d", c.Index)
	}

	got, err := session.Result()
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrSessionFailed)
}

func TestPoolZeroRetries(t *testing.T) {
	data := patternBytes(2048)
	session, err := NewSession(int64(len(data)), 1024)
	require.NoError(t, err)
	f := newFakeFetcher(data)
	f.failures[0] = 1
	p, rec := newTestPool(f, PoolConfig{Concurrency: 1, MaxRetries: 0})

	err = p.Run(context.Background(), session, nil)
	require.ErrorIs(t, err, ErrSessionFailed)
	assert.Equal(t, 1, f.attemptsFor(0))
	assert.Empty(t, rec.delays)
	assert.Equal(t, ChunkSucceeded, session.Chunks[1].Status)
}

func TestPoolRespectsConcurrencyBound(t *testing.T) {
	for _, k := range []int{1, 2, 5} {
		data := patternBytes(40 * 64)
		session, err := NewSession(int64(len(data)), 64)
		require.NoError(t, err)
		f := newFakeFetcher(data)
		f.delay = 2 * time.Millisecond
		p, _ := newTestPool(f, PoolConfig{Concurrency: k, MaxRetries: 1})

		require.NoError(t, p.Run(context.Background(), session, nil))
		assert.LessOrEqual(t, int(f.maxInFlight.Load()), k, "concurrency %d", k)
		assert.GreaterOrEqual(t, int(f.maxInFlight.Load()), 1)
	}
}

func TestPoolCancelledContext(t *testing.T) {
	data := patternBytes(4 * 256)
	session, err := NewSession(int64(len(data)), 256)
	require.NoError(t, err)
	f := newFakeFetcher(data)
	p, _ := newTestPool(f, PoolConfig{Concurrency: 2, MaxRetries: 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// The first permit may still be acquired before cancellation is observed;
	// every chunk must end terminal either way.
	_ = p.Run(ctx, session, nil)
	for _, c := range session.Chunks {
		assert.True(t, c.Terminal(), "chunk %d is %s", c.Index, c.Status)
	}
}

func TestPoolEmptySession(t *testing.T) {
	session, err := NewSession(0, 1024)
	require.NoError(t, err)
	p, _ := newTestPool(newFakeFetcher(nil), PoolConfig{Concurrency: 4})
	assert.NoError(t, p.Run(context.Background(), session, nil))
}
