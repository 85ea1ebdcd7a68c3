package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

func waitDone(t *testing.T, ctx context.Context) {
	t.Helper()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context was not cancelled")
	}
}

func TestStreamsStartSupersedes(t *testing.T) {
	s := NewStreams()
	defer s.Close()

	first := s.Start(testURI, time.Minute)
	if first.prev != nil {
		t.Error("first stream should have nothing to wait for")
	}
	second := s.Start(testURI, time.Minute)
	if first.id == second.id {
		t.Fatal("expected distinct stream ids")
	}
	waitDone(t, first.ctx)
	if second.ctx.Err() != nil {
		t.Error("new stream should not be cancelled")
	}

	if second.prev == nil {
		t.Fatal("superseding stream should wait for the first")
	}
	select {
	case <-second.prev:
		t.Fatal("prev must stay open until the first stream finishes")
	default:
	}

	// Finishing the superseded stream must not drop the new one.
	s.Finish(testURI, first)
	select {
	case <-second.prev:
	default:
		t.Error("prev should be closed once the first stream finishes")
	}
	if !s.running(testURI) {
		t.Error("superseding stream should still be registered")
	}
	s.Finish(testURI, second)
	if s.running(testURI) {
		t.Error("stream should be unregistered after finish")
	}
	if third := s.Start(testURI, time.Minute); third.prev != nil {
		t.Error("no stream left to wait for after both finished")
	}
}

func TestStreamsWaitForCancelledStream(t *testing.T) {
	s := NewStreams()
	defer s.Close()

	first := s.Start(testURI, time.Minute)
	s.Cancel(testURI)
	// The cancelled stream is unregistered but may still be applying an edit.
	second := s.Start(testURI, time.Minute)
	if second.prev == nil {
		t.Fatal("expected to wait for the cancelled stream")
	}
	s.Finish(testURI, first)
	<-second.prev
}

func TestStreamsCancel(t *testing.T) {
	s := NewStreams()
	defer s.Close()

	if s.Cancel(testURI) {
		t.Error("cancel without a stream should report false")
	}
	run := s.Start(testURI, time.Minute)
	if !s.Cancel(testURI) {
		t.Error("cancel should report the running stream")
	}
	if !errors.Is(run.ctx.Err(), context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", run.ctx.Err())
	}
	if s.running(testURI) {
		t.Error("cancelled stream should be unregistered")
	}
}

func TestStreamsTimeout(t *testing.T) {
	s := NewStreams()
	defer s.Close()

	run := s.Start(testURI, 50*time.Millisecond)
	waitDone(t, run.ctx)
}

func TestStreamsCancelAll(t *testing.T) {
	s := NewStreams()
	defer s.Close()

	a := s.Start("file:///a", time.Minute)
	b := s.Start("file:///b", time.Minute)
	s.CancelAll()
	waitDone(t, a.ctx)
	waitDone(t, b.ctx)
	if s.running("file:///a") || s.running("file:///b") {
		t.Error("expected no running streams")
	}
}
