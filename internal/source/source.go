// Package source talks to the remote artifact store. A Source reports the
// artifact size and serves inclusive byte ranges of it.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/tanq16/kickstart/internal/utils"
)

// ErrInvalidSize is returned when the remote reports a size that is not a
// non-negative decimal integer.
var ErrInvalidSize = errors.New("source: invalid artifact size")

var ErrUnsupportedScheme = errors.New("source: unsupported base URL scheme")

type Source interface {
	// Size returns the total artifact length in bytes.
	Size(ctx context.Context) (int64, error)
	// FetchRange returns exactly end-start+1 bytes for the inclusive range.
	FetchRange(ctx context.Context, start, end int64) ([]byte, error)
	String() string
}

// FetchError describes a failed request against the remote. All fetch
// errors are transient from the caller's point of view.
type FetchError struct {
	Op         string
	Target     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status code %d", e.Op, e.Target, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Options struct {
	BaseURL    string
	HTTP       utils.HTTPClientConfig
	AWSProfile string
	RateLimit  int64
}

// Open picks the Source implementation matching the base URL scheme.
func Open(ctx context.Context, opts Options) (Source, error) {
	parsed, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	limiter := NewRateLimiter(opts.RateLimit)
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		client, err := utils.NewKickstartHTTPClient(opts.HTTP)
		if err != nil {
			return nil, err
		}
		return NewHTTPSource(opts.BaseURL, client, limiter), nil
	case "s3":
		return NewS3Source(ctx, opts.BaseURL, opts.AWSProfile, limiter)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
	}
}

// readExact reads exactly want bytes and rejects short or long bodies.
func readExact(r io.Reader, want int64) ([]byte, error) {
	buf := make([]byte, want)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("short body: %w", err)
	}
	var extra [1]byte
	if n, _ := r.Read(extra[:]); n > 0 {
		return nil, fmt.Errorf("body longer than requested %d bytes", want)
	}
	return buf, nil
}
