package downloader

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Fetcher returns exactly the bytes of an inclusive range.
type Fetcher interface {
	FetchRange(ctx context.Context, start, end int64) ([]byte, error)
}

type PoolConfig struct {
	Concurrency int
	MaxRetries  int
	BackoffBase time.Duration
}

// Pool runs one goroutine per chunk, with at most Concurrency fetches in
// flight at a time.
type Pool struct {
	fetcher Fetcher
	cfg     PoolConfig
	permits chan struct{}
	sleep   func(ctx context.Context, d time.Duration) error
}

type attemptOutcome int

const (
	attemptSucceeded attemptOutcome = iota
	attemptRetry
	attemptExhausted
)

func NewPool(fetcher Fetcher, cfg PoolConfig) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Pool{
		fetcher: fetcher,
		cfg:     cfg,
		permits: make(chan struct{}, cfg.Concurrency),
		sleep:   sleepContext,
	}
}

// Run fetches every chunk of the session and waits for all of them to settle.
// A failed chunk never cancels the others; the returned *SessionError lists
// every chunk that exhausted its retries.
func (p *Pool) Run(ctx context.Context, session *Session, agg *Aggregator) error {
	failures := make([]*ChunkExhaustedError, len(session.Chunks))
	var wg sync.WaitGroup
	for i := range session.Chunks {
		wg.Add(1)
		go func(chunk *Chunk) {
			defer wg.Done()
			failures[chunk.Index] = p.fetchChunk(ctx, session, chunk, agg)
		}(&session.Chunks[i])
	}
	wg.Wait()

	if session.FailedChunks() == 0 {
		return nil
	}
	sessErr := &SessionError{TotalChunks: len(session.Chunks)}
	for _, f := range failures {
		if f != nil {
			sessErr.Failed = append(sessErr.Failed, f)
		}
	}
	return sessErr
}

func (p *Pool) fetchChunk(ctx context.Context, session *Session, chunk *Chunk, agg *Aggregator) *ChunkExhaustedError {
	logger := log.With().Str("op", "downloader/pool").Str("session", session.ID.String()).Int("chunkId", chunk.Index).Logger()
	for {
		if err := p.acquire(ctx); err != nil {
			return p.exhaust(session, chunk, err)
		}
		chunk.Status = ChunkInFlight
		payload, err := p.fetcher.FetchRange(ctx, chunk.Start, chunk.End)
		if err == nil {
			err = session.assembler.Write(*chunk, payload)
		}
		p.release()

		switch p.next(ctx, chunk, err) {
		case attemptSucceeded:
			chunk.Status = ChunkSucceeded
			if agg != nil {
				agg.ChunkCompleted(chunk.Index, chunk.Len())
			}
			logger.Debug().Int("attempts", chunk.Retries+1).Msg("Chunk download completed")
			return nil
		case attemptRetry:
			delay := p.cfg.BackoffBase * time.Duration(chunk.Retries+1)
			logger.Debug().Err(err).Int("attempt", chunk.Retries+1).Dur("backoff", delay).Msg("Retrying download of chunk")
			chunk.Status = ChunkPending
			if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
				return p.exhaust(session, chunk, sleepErr)
			}
			chunk.Retries++
		case attemptExhausted:
			logger.Error().Err(err).Int("attempts", chunk.Retries+1).Msg("Failed to download chunk after multiple attempts")
			return p.exhaust(session, chunk, err)
		}
	}
}

func (p *Pool) next(ctx context.Context, chunk *Chunk, err error) attemptOutcome {
	if err == nil {
		return attemptSucceeded
	}
	if ctx.Err() != nil || chunk.Retries >= p.cfg.MaxRetries {
		return attemptExhausted
	}
	return attemptRetry
}

func (p *Pool) exhaust(session *Session, chunk *Chunk, err error) *ChunkExhaustedError {
	chunk.Status = ChunkFailed
	session.markFailed()
	return &ChunkExhaustedError{Index: chunk.Index, Attempts: chunk.Retries + 1, Err: err}
}

func (p *Pool) acquire(ctx context.Context) error {
	select {
	case p.permits <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) release() {
	<-p.permits
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
