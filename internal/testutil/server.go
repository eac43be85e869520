// Package testutil provides an in-process artifact server speaking the
// /size and /get/{start}/{end} protocol, with failure injection.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// FailFunc decides the status code for a range request. Returning 0 serves
// the range normally. attempt starts at 1 for each distinct range.
type FailFunc func(start, end int64, attempt int) int

type ArtifactServer struct {
	*httptest.Server

	data     []byte
	sizeBody string

	mu       sync.Mutex
	fail     FailFunc
	attempts map[string]int
}

// NewArtifactServer serves data and closes itself when the test ends.
func NewArtifactServer(t testing.TB, data []byte) *ArtifactServer {
	t.Helper()
	s := &ArtifactServer{
		data:     data,
		sizeBody: strconv.Itoa(len(data)),
		attempts: make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// SetFailFunc installs a failure injector.
func (s *ArtifactServer) SetFailFunc(fn FailFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fn
}

// SetSizeBody overrides the /size response body.
func (s *ArtifactServer) SetSizeBody(body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sizeBody = body
}

// Attempts reports how many times the range was requested.
func (s *ArtifactServer) Attempts(start, end int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[rangeKey(start, end)]
}

// TotalRequests reports the number of range requests served or failed.
func (s *ArtifactServer) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.attempts {
		total += n
	}
	return total
}

func (s *ArtifactServer) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/size":
		s.mu.Lock()
		body := s.sizeBody
		s.mu.Unlock()
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, body)
	case strings.HasPrefix(r.URL.Path, "/get/"):
		s.serveRange(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *ArtifactServer) serveRange(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/get/"), "/")
	if len(parts) != 2 {
		http.Error(w, "bad range", http.StatusBadRequest)
		return
	}
	start, err1 := strconv.ParseInt(parts[0], 10, 64)
	end, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil || start < 0 || end < start || end >= int64(len(s.data)) {
		http.Error(w, "bad range", http.StatusRequestedRangeNotSatisfiable)
		return
	}

	s.mu.Lock()
	key := rangeKey(start, end)
	s.attempts[key]++
	attempt := s.attempts[key]
	fail := s.fail
	s.mu.Unlock()

	if fail != nil {
		if code := fail(start, end, attempt); code != 0 {
			w.WriteHeader(code)
			return
		}
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.Write(s.data[start : end+1])
}

func rangeKey(start, end int64) string {
	return fmt.Sprintf("%d-%d", start, end)
}

// Pattern returns deterministic non-trivial test bytes.
func Pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte((i*31 + i/251) % 256)
	}
	return data
}
