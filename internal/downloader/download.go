package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tanq16/kickstart/internal/source"
)

// Remote is the artifact store a download reads from.
type Remote interface {
	Fetcher
	Size(ctx context.Context) (int64, error)
	String() string
}

// Renderer receives sampled snapshots while chunks are in flight. Finish is
// called exactly once after the join with the closing totals; it is not
// rate-limited by the sampling interval.
type Renderer interface {
	Render(Snapshot)
	Finish(Snapshot)
}

type Options struct {
	ChunkSize      int64
	Concurrency    int
	MaxRetries     int
	BackoffBase    time.Duration
	SampleInterval time.Duration
	// MaxSize rejects larger artifacts before any buffer is allocated.
	// Zero disables the check.
	MaxSize int64
}

func DefaultOptions() Options {
	return Options{
		ChunkSize:      2 * 1024 * 1024,
		Concurrency:    16,
		MaxRetries:     5,
		BackoffBase:    500 * time.Millisecond,
		SampleInterval: 100 * time.Millisecond,
		MaxSize:        4 << 30,
	}
}

// Download probes the remote size, fetches every chunk and returns the
// assembled artifact. It never returns a partial buffer.
func Download(ctx context.Context, remote Remote, opts Options, renderer Renderer) ([]byte, error) {
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = 100 * time.Millisecond
	}
	size, err := remote.Size(ctx)
	if err != nil {
		return nil, fmt.Errorf("error probing artifact size: %w", err)
	}
	if opts.MaxSize > 0 && size > opts.MaxSize {
		return nil, fmt.Errorf("error probing artifact size: %w: %d bytes exceeds limit of %d", source.ErrInvalidSize, size, opts.MaxSize)
	}
	session, err := NewSession(size, opts.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("error planning chunks: %w", err)
	}
	log.Info().Str("op", "downloader/download").Str("session", session.ID.String()).
		Int64("size", size).Int("chunks", len(session.Chunks)).Int("concurrency", opts.Concurrency).
		Msgf("Downloading %s", remote)

	agg := NewAggregator(session, opts.SampleInterval)
	watchCtx, stopWatch := context.WithCancel(ctx)
	var watchWg sync.WaitGroup
	if renderer != nil {
		watchWg.Add(1)
		go func() {
			defer watchWg.Done()
			agg.Watch(watchCtx, renderer.Render)
		}()
	}

	pool := NewPool(remote, PoolConfig{
		Concurrency: opts.Concurrency,
		MaxRetries:  opts.MaxRetries,
		BackoffBase: opts.BackoffBase,
	})
	runErr := pool.Run(ctx, session, agg)
	stopWatch()
	watchWg.Wait()
	if renderer != nil {
		// closing frame; may follow the last Render by less than an interval
		renderer.Finish(agg.Snapshot())
	}
	if runErr != nil {
		return nil, runErr
	}
	data, err := session.Result()
	if err != nil {
		return nil, err
	}
	log.Info().Str("op", "downloader/download").Str("session", session.ID.String()).
		Dur("elapsed", time.Since(session.StartTime)).Msg("Download assembled")
	return data, nil
}
