package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// streamEntry tracks a cancellable in-flight stream for a document.
type streamEntry struct {
	id     string
	cancel context.CancelFunc
}

// streamRun is a registered stream. The goroutine driving it must call
// Streams.Finish when it returns, and must not touch the document before
// prev is closed.
type streamRun struct {
	ctx  context.Context
	id   string
	done chan struct{}
	// prev is closed once the stream this one superseded has returned.
	prev <-chan struct{}
}

// Streams is the registry of running streams, at most one per document.
// Entries expire after the stream timeout; any eviction cancels the stream.
type Streams struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[protocol.DocumentUri, streamEntry]
	// last holds the done channel of the newest stream per document until
	// that stream returns, even after its entry was cancelled or expired.
	last map[protocol.DocumentUri]chan struct{}
}

// NewStreams creates a registry and starts its expiration loop.
func NewStreams() *Streams {
	c := ttlcache.New[protocol.DocumentUri, streamEntry](
		ttlcache.WithDisableTouchOnHit[protocol.DocumentUri, streamEntry](),
	)
	c.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[protocol.DocumentUri, streamEntry]) {
		if reason == ttlcache.EvictionReasonExpired {
			slog.Warn("stream timed out", "uri", item.Key(), "stream", item.Value().id)
		}
		item.Value().cancel()
	})
	go c.Start()
	return &Streams{cache: c, last: make(map[protocol.DocumentUri]chan struct{})}
}

// Start registers a new stream for uri, cancelling the one already running
// there.
func (s *Streams) Start(uri protocol.DocumentUri, timeout time.Duration) *streamRun {
	ctx, cancel := context.WithCancel(context.Background())
	run := &streamRun{ctx: ctx, id: uuid.NewString(), done: make(chan struct{})}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev := s.cache.Get(uri); prev != nil {
		slog.Info("superseding running stream", "uri", uri, "stream", prev.Value().id)
		prev.Value().cancel()
	}
	if last, ok := s.last[uri]; ok {
		run.prev = last
	}
	s.last[uri] = run.done
	s.cache.Set(uri, streamEntry{id: run.id, cancel: cancel}, timeout)
	return run
}

// Finish marks run as returned and unregisters it if it is still the
// stream registered for uri.
func (s *Streams) Finish(uri protocol.DocumentUri, run *streamRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(run.done)
	if s.last[uri] == run.done {
		delete(s.last, uri)
	}
	if cur := s.cache.Get(uri); cur != nil && cur.Value().id == run.id {
		s.cache.Delete(uri)
	}
}

// Cancel stops the stream running for uri. It reports whether one was running.
func (s *Streams) Cancel(uri protocol.DocumentUri) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.cache.Get(uri)
	if item == nil {
		return false
	}
	// Cancel directly: eviction callbacks may run after Delete returns.
	item.Value().cancel()
	s.cache.Delete(uri)
	return true
}

// running reports whether a stream is registered for uri.
func (s *Streams) running(uri protocol.DocumentUri) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Get(uri) != nil
}

// CancelAll stops every running stream.
func (s *Streams) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.cache.Items() {
		item.Value().cancel()
	}
	s.cache.DeleteAll()
}

// Close cancels all streams and stops the expiration loop.
func (s *Streams) Close() {
	s.CancelAll()
	s.cache.Stop()
}
