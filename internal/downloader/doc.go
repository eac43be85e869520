// Package downloader fetches an artifact in parallel byte-range chunks.
//
// A download probes the remote size, plans fixed-size chunks, and runs one
// goroutine per chunk behind a permit pool of K slots. Each chunk is retried
// with linear backoff; a chunk that exhausts its retries is marked Failed but
// never cancels its siblings. The session fails iff any chunk failed once all
// chunks have settled.
//
// Every chunk owns a disjoint sub-range of the preallocated result buffer, so
// payload copies take no lock. Only the progress sum is mutex-protected.
package downloader
