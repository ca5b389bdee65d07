package muxscope

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const DefaultPollInterval = 50 * time.Millisecond

type SessionConfig struct {
	Rows      int
	Cols      int
	QueueSize int
	Overflow  OverflowPolicy
}

// Session ties a set of Readers to one EventChannel and the ChannelGrid the
// consumer renders from.
type Session struct {
	cfg    SessionConfig
	events *EventChannel
	grid   *ChannelGrid

	mu      sync.Mutex
	readers []*Reader
	// readers[:started] are running or have returned
	started int
	group   *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc

	// consumer side scratch buffer, reused across polls
	buf []Event
}

func NewSession(cfg SessionConfig) (*Session, error) {
	grid, err := NewChannelGrid(cfg.Rows, cfg.Cols)
	if err != nil {
		return nil, err
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Session{
		cfg:    cfg,
		events: NewEventChannel(cfg.QueueSize, cfg.Overflow),
		grid:   grid,
	}, nil
}

func (s *Session) Events() *EventChannel {
	return s.events
}

func (s *Session) Grid() *ChannelGrid {
	return s.grid
}

func (s *Session) Readers() []*Reader {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Reader, len(s.readers))
	copy(out, s.readers)
	return out
}

// AddReader binds a new Reader for src and dec to the session. Readers added
// after Start are started by the next call to Start.
func (s *Session) AddReader(name string, src Source, dec Decoder, cfg ReaderConfig) *Reader {
	if name != "" {
		cfg.Name = name
	}
	r := NewReader(cfg, src, dec, s.events)
	s.mu.Lock()
	s.readers = append(s.readers, r)
	s.mu.Unlock()
	return r
}

// Start launches every Reader that is not running yet on its own goroutine.
// The context of the first call governs all readers of the session; later
// calls only start readers added since and ignore ctx.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.readers) == 0 {
		return fmt.Errorf("%w: session has no readers", ErrInvalidConfig)
	}
	if s.group == nil {
		s.ctx, s.cancel = context.WithCancel(ctx)
		// a failing reader must not take the others down, so the group
		// context is not used to run them
		s.group = new(errgroup.Group)
	}
	if s.ctx.Err() != nil {
		return fmt.Errorf("session stopped: %w", s.ctx.Err())
	}
	rctx := s.ctx
	for _, r := range s.readers[s.started:] {
		r := r
		s.group.Go(func() error {
			return r.Run(rctx)
		})
	}
	log.Debug().Int("readers", len(s.readers)-s.started).Msg("session started readers")
	s.started = len(s.readers)
	return nil
}

// Wait blocks until every Reader returned and reports the first error.
func (s *Session) Wait() error {
	s.mu.Lock()
	g := s.group
	s.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

// Stop cancels all Readers and waits for them to close their sources.
func (s *Session) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	err := s.Wait()
	log.Debug().Msg("session stopped")
	return err
}

// Poll drains the event channel and applies every payload frame to the grid
// in arrival order. The drained events are returned; the slice is only valid
// until the next call. A frame that does not fit the grid stops the poll and
// its error is returned together with the events drained so far.
func (s *Session) Poll() ([]Event, error) {
	s.buf = s.events.DrainInto(s.buf[:0])
	for _, ev := range s.buf {
		if ev.Type != EventTypePayload {
			continue
		}
		if err := s.grid.ApplyFrame(ev.Frame); err != nil {
			return s.buf, fmt.Errorf("%s: %w", ev.Source, err)
		}
	}
	return s.buf, nil
}

// Run polls every interval until ctx is done and passes every non-empty batch
// to fn. An error from Poll or fn ends Run.
func (s *Session) Run(ctx context.Context, interval time.Duration, fn func([]Event) error) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			evs, err := s.Poll()
			if len(evs) > 0 && fn != nil {
				if ferr := fn(evs); ferr != nil {
					return ferr
				}
			}
			if err != nil {
				return err
			}
		}
	}
}
