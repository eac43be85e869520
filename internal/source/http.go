package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/tanq16/kickstart/internal/utils"
)

// HTTPSource serves the artifact from a plain HTTP endpoint exposing
// GET {base}/size and GET {base}/get/{start}/{end}.
type HTTPSource struct {
	base    string
	client  utils.HTTPDoer
	limiter *rate.Limiter
}

func NewHTTPSource(base string, client utils.HTTPDoer, limiter *rate.Limiter) *HTTPSource {
	return &HTTPSource{
		base:    strings.TrimSuffix(base, "/"),
		client:  client,
		limiter: limiter,
	}
}

func (s *HTTPSource) String() string {
	return s.base
}

func (s *HTTPSource) Size(ctx context.Context) (int64, error) {
	target := s.base + "/size"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("error creating size request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, &FetchError{Op: "size", Target: target, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &FetchError{Op: "size", Target: target, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return 0, &FetchError{Op: "size", Target: target, Err: err}
	}
	size, err := parseSize(string(body))
	if err != nil {
		return 0, err
	}
	log.Debug().Str("op", "source/http").Int64("size", size).Msg("Remote size probed")
	return size, nil
}

func (s *HTTPSource) FetchRange(ctx context.Context, start, end int64) ([]byte, error) {
	target := fmt.Sprintf("%s/get/%d/%d", s.base, start, end)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating range request: %w", err)
	}
	req.Header.Set("Connection", "keep-alive")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{Op: "get", Target: target, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Op: "get", Target: target, StatusCode: resp.StatusCode}
	}
	payload, err := readExact(limitReader(ctx, resp.Body, s.limiter), end-start+1)
	if err != nil {
		return nil, &FetchError{Op: "get", Target: target, Err: err}
	}
	return payload, nil
}

func parseSize(text string) (int64, error) {
	text = strings.TrimSpace(text)
	size, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, text)
	}
	if size < 0 {
		return 0, fmt.Errorf("%w: negative size %d", ErrInvalidSize, size)
	}
	return size, nil
}
