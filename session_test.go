package muxscope

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestSessionPollAppliesLastFrame(t *testing.T) {
	s, err := NewSession(SessionConfig{Rows: 1, Cols: 2})
	if err != nil {
		t.Fatal(err)
	}
	src := &fakeSource{units: lines("1,1,1", "2,2,2", "3,3,3"), err: io.EOF}
	s.AddReader("csv", src, newCSVDecoder(t, 2), ReaderConfig{})

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Wait(); err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	evs, err := s.Poll()
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if n := countTypes(evs)[EventTypePayload]; n != 3 {
		t.Fatalf("polled %d payloads, want 3", n)
	}
	if got := s.Grid().Values(); got[0] != 3 || got[1] != 3 {
		t.Errorf("grid = %v, want last frame", got)
	}
	if s.Grid().Frames() != 3 {
		t.Errorf("grid applied %d frames", s.Grid().Frames())
	}
}

func TestSessionShapeMismatch(t *testing.T) {
	s, _ := NewSession(SessionConfig{Rows: 2, Cols: 2})
	src := &fakeSource{units: lines("1,1,2,3"), err: io.EOF}
	s.AddReader("wrong", src, newCSVDecoder(t, 3), ReaderConfig{})
	s.Start(context.Background())
	s.Wait()
	_, err := s.Poll()
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestSessionReaderFailureIsIsolated(t *testing.T) {
	s, _ := NewSession(SessionConfig{Rows: 1, Cols: 1, QueueSize: 64})
	bad := &fakeSource{err: errors.New("unplugged")}
	good := &fakeSource{units: lines("1,7", "2,8"), err: io.EOF}
	s.AddReader("bad", bad, newCSVDecoder(t, 1), ReaderConfig{})
	s.AddReader("good", good, newCSVDecoder(t, 1), ReaderConfig{})

	s.Start(context.Background())
	err := s.Wait()
	if !IsTransportError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	evs, _ := s.Poll()
	if n := countTypes(evs)[EventTypePayload]; n != 2 {
		t.Errorf("good reader delivered %d frames, want 2", n)
	}
	if v, _ := s.Grid().CellValue(0, 0); v != 8 {
		t.Errorf("cell = %d, want 8", v)
	}
	if bad.closeCount() != 1 || good.closeCount() != 1 {
		t.Error("sources not closed exactly once")
	}
}

func TestSessionStop(t *testing.T) {
	s, _ := NewSession(SessionConfig{Rows: 1, Cols: 1})
	srcs := []*fakeSource{{timeout: 5 * time.Millisecond}, {timeout: 5 * time.Millisecond}}
	for _, src := range srcs {
		s.AddReader("", src, newCSVDecoder(t, 1), ReaderConfig{})
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	// nothing new to start, running readers are left alone
	if err := s.Start(context.Background()); err != nil {
		t.Errorf("second Start() error: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	for i, src := range srcs {
		if src.closeCount() != 1 {
			t.Errorf("source %d closed %d times", i, src.closeCount())
		}
	}
}

func TestSessionStartLateReader(t *testing.T) {
	s, _ := NewSession(SessionConfig{Rows: 1, Cols: 1, QueueSize: 64})
	first := &fakeSource{units: lines("1,1"), err: io.EOF}
	s.AddReader("first", first, newCSVDecoder(t, 1), ReaderConfig{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	late := &fakeSource{units: lines("2,9"), err: io.EOF}
	s.AddReader("late", late, newCSVDecoder(t, 1), ReaderConfig{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() for late reader error: %v", err)
	}
	if err := s.Wait(); err != nil {
		t.Fatal(err)
	}
	evs, err := s.Poll()
	if err != nil {
		t.Fatal(err)
	}
	bySource := make(map[string]int)
	for _, ev := range evs {
		if ev.Type == EventTypePayload {
			bySource[ev.Source]++
		}
	}
	if bySource["first"] != 1 || bySource["late"] != 1 {
		t.Errorf("payloads per reader = %v", bySource)
	}
	if first.closeCount() != 1 || late.closeCount() != 1 {
		t.Error("sources not closed exactly once")
	}

	s.Stop()
	s.AddReader("after stop", &fakeSource{err: io.EOF}, newCSVDecoder(t, 1), ReaderConfig{})
	if err := s.Start(context.Background()); err == nil {
		t.Error("Start after Stop should fail")
	}
}

func TestSessionRun(t *testing.T) {
	s, _ := NewSession(SessionConfig{Rows: 1, Cols: 1})
	s.AddReader("csv", &fakeSource{units: lines("1,1", "2,2"), err: io.EOF}, newCSVDecoder(t, 1), ReaderConfig{})
	s.Start(context.Background())
	s.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	var got int
	stop := errors.New("stop")
	err := s.Run(ctx, 5*time.Millisecond, func(evs []Event) error {
		got += len(evs)
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("Run() error = %v, want callback error", err)
	}
	// start info, two payloads, end of input
	if got != 4 {
		t.Errorf("got %d events, want 4", got)
	}
}

func TestSessionNoReaders(t *testing.T) {
	s, _ := NewSession(SessionConfig{Rows: 1, Cols: 1})
	if err := s.Start(context.Background()); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewSession(SessionConfig{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
