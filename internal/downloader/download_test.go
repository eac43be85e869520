package downloader

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanq16/kickstart/internal/source"
	"github.com/tanq16/kickstart/internal/testutil"
)

type recordingRenderer struct {
	mu       sync.Mutex
	renders  []Snapshot
	finished []Snapshot
}

func (r *recordingRenderer) Render(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renders = append(r.renders, s)
}

func (r *recordingRenderer) Finish(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, s)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.ChunkSize = 4096
	opts.Concurrency = 4
	opts.MaxRetries = 3
	opts.BackoffBase = time.Millisecond
	opts.SampleInterval = 10 * time.Millisecond
	return opts
}

func newHTTPRemote(t *testing.T, srv *testutil.ArtifactServer) Remote {
	t.Helper()
	return source.NewHTTPSource(srv.URL, srv.Client(), nil)
}

func TestDownloadEndToEnd(t *testing.T) {
	data := testutil.Pattern(10*4096 + 123)
	srv := testutil.NewArtifactServer(t, data)
	renderer := &recordingRenderer{}

	got, err := Download(context.Background(), newHTTPRemote(t, srv), testOptions(), renderer)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, 11, srv.TotalRequests())

	require.Len(t, renderer.finished, 1)
	final := renderer.finished[0]
	assert.Equal(t, 1.0, final.Fraction)
	assert.Equal(t, int64(len(data)), final.Downloaded)
	assert.Zero(t, final.FailedChunks)
}

func TestDownloadRecoversFromTransientFailures(t *testing.T) {
	data := testutil.Pattern(5 * 4096)
	srv := testutil.NewArtifactServer(t, data)
	srv.SetFailFunc(func(start, end int64, attempt int) int {
		if start == 4096 && attempt <= 2 {
			return http.StatusServiceUnavailable
		}
		return 0
	})

	got, err := Download(context.Background(), newHTTPRemote(t, srv), testOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, 3, srv.Attempts(4096, 8191))
}

func TestDownloadFailsWhenChunkExhausted(t *testing.T) {
	data := testutil.Pattern(5 * 4096)
	srv := testutil.NewArtifactServer(t, data)
	srv.SetFailFunc(func(start, end int64, attempt int) int {
		if start == 2*4096 {
			return http.StatusInternalServerError
		}
		return 0
	})
	renderer := &recordingRenderer{}

	got, err := Download(context.Background(), newHTTPRemote(t, srv), testOptions(), renderer)
	assert.Nil(t, got)
	require.ErrorIs(t, err, ErrSessionFailed)
	assert.Equal(t, 4, srv.Attempts(2*4096, 3*4096-1))
	require.Len(t, renderer.finished, 1)
	assert.Equal(t, 1, renderer.finished[0].FailedChunks)
}

func TestDownloadInvalidSize(t *testing.T) {
	for _, body := range []string{"abc", "-5", ""} {
		srv := testutil.NewArtifactServer(t, testutil.Pattern(10))
		srv.SetSizeBody(body)

		got, err := Download(context.Background(), newHTTPRemote(t, srv), testOptions(), nil)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, source.ErrInvalidSize, "body %q", body)
		assert.Zero(t, srv.TotalRequests())
	}
}

func TestDownloadEmptyArtifact(t *testing.T) {
	srv := testutil.NewArtifactServer(t, nil)
	got, err := Download(context.Background(), newHTTPRemote(t, srv), testOptions(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, srv.TotalRequests())
}

// hugeRemote announces a size far beyond what could be allocated.
type hugeRemote struct {
	size    int64
	fetches int
}

func (r *hugeRemote) Size(ctx context.Context) (int64, error) { return r.size, nil }
func (r *hugeRemote) String() string                          { return "mem://huge" }
func (r *hugeRemote) FetchRange(ctx context.Context, start, end int64) ([]byte, error) {
	r.fetches++
	return make([]byte, end-start+1), nil
}

func TestDownloadRejectsOversizedArtifact(t *testing.T) {
	for _, size := range []int64{1 << 62, 4<<30 + 1} {
		remote := &hugeRemote{size: size}
		renderer := &recordingRenderer{}

		got, err := Download(context.Background(), remote, DefaultOptions(), renderer)
		assert.Nil(t, got)
		require.ErrorIs(t, err, source.ErrInvalidSize, "size %d", size)
		assert.Zero(t, remote.fetches)
		assert.Empty(t, renderer.finished)
	}
}

func TestDownloadMaxSizeBoundary(t *testing.T) {
	data := testutil.Pattern(4096)
	srv := testutil.NewArtifactServer(t, data)

	opts := testOptions()
	opts.MaxSize = int64(len(data))
	got, err := Download(context.Background(), newHTTPRemote(t, srv), opts, nil)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	opts.MaxSize = int64(len(data)) - 1
	_, err = Download(context.Background(), newHTTPRemote(t, srv), opts, nil)
	assert.ErrorIs(t, err, source.ErrInvalidSize)
}

func TestDownloadFinishIsTheClosingFrame(t *testing.T) {
	data := testutil.Pattern(8 * 4096)
	srv := testutil.NewArtifactServer(t, data)
	renderer := &recordingRenderer{}

	_, err := Download(context.Background(), newHTTPRemote(t, srv), testOptions(), renderer)
	require.NoError(t, err)

	renderer.mu.Lock()
	defer renderer.mu.Unlock()
	require.Len(t, renderer.finished, 1)
	final := renderer.finished[0]
	assert.Equal(t, int64(len(data)), final.Downloaded)
	for _, r := range renderer.renders {
		assert.LessOrEqual(t, r.Fraction, final.Fraction)
	}
}
