package muxscope

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultInfoEvery = 100

type ReaderConfig struct {
	// Name is used as the Source of every event, defaults to the source name
	Name string
	// InfoEvery publishes decode counters every n frames, 0 disables
	InfoEvery int
	// Now stamps Frame.Received, defaults to time.Now
	Now func() time.Time
}

// Reader owns one Source and one Decoder and runs on its own goroutine,
// publishing what it decodes to an EventChannel.
type Reader struct {
	cfg    ReaderConfig
	src    Source
	dec    Decoder
	events *EventChannel

	closeOnce sync.Once
	closeErr  error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func NewReader(cfg ReaderConfig, src Source, dec Decoder, events *EventChannel) *Reader {
	if cfg.Name == "" {
		cfg.Name = sourceName(src)
	}
	if cfg.Name == "" {
		cfg.Name = "reader"
	}
	if cfg.InfoEvery < 0 {
		cfg.InfoEvery = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reader{
		cfg:    cfg,
		src:    src,
		dec:    dec,
		events: events,
	}
}

func (r *Reader) Name() string {
	return r.cfg.Name
}

func (r *Reader) Decoder() Decoder {
	return r.dec
}

// Stats returns the decode counters, safe to call while the reader runs.
func (r *Reader) Stats() DecoderStats {
	return r.dec.Stats()
}

// RequestScan forwards to the source if it can ask the device for a new scan.
func (r *Reader) RequestScan() error {
	sr, ok := r.src.(ScanRequester)
	if !ok {
		return fmt.Errorf("source %s does not support scan requests", r.cfg.Name)
	}
	return sr.RequestScan()
}

// Run reads until ctx is cancelled, the source fails or the source reaches
// io.EOF. The source is closed before Run returns. A cancelled context is a
// clean exit and returns nil.
func (r *Reader) Run(ctx context.Context) error {
	defer r.closeSource()

	logger := log.With().Str("reader", r.cfg.Name).Logger()
	logger.Debug().Msg("reader started")
	r.publish(ctx, InfoEvent(r.cfg.Name, "reader started"))

	var frames uint64
	for ctx.Err() == nil {
		unit, err := r.src.ReadUnit()
		if err != nil {
			if errors.Is(err, io.EOF) {
				st := r.dec.Stats()
				logger.Debug().Msg("end of input")
				r.publish(ctx, InfoEvent(r.cfg.Name, "end of input, "+st.String()))
				return nil
			}
			if ctx.Err() != nil {
				// the read was interrupted by shutdown
				break
			}
			terr := r.transportError(err)
			logger.Error().Err(terr).Msg("read failed")
			if perr := r.events.PublishWait(ctx, ErrorEvent(r.cfg.Name, terr)); perr != nil {
				logger.Debug().Err(perr).Msg("error event not delivered")
			}
			return terr
		}
		if unit == nil {
			continue
		}
		before := r.dec.Stats().Dropped
		for _, f := range r.dec.Feed(unit) {
			f := f
			f.Received = r.cfg.Now()
			r.publish(ctx, PayloadEvent(r.cfg.Name, &f))
			frames++
			if r.cfg.InfoEvery > 0 && frames%uint64(r.cfg.InfoEvery) == 0 {
				r.publish(ctx, InfoEvent(r.cfg.Name, r.dec.Stats().String()))
			}
		}
		if r.dec.Stats().Dropped > before {
			logger.Debug().Bytes("unit", unit).Msg("dropped unit")
		}
	}
	logger.Debug().Msg("reader stopped")
	return nil
}

func (r *Reader) publish(ctx context.Context, ev Event) {
	if err := r.events.Publish(ctx, ev); err != nil {
		log.Debug().Str("reader", r.cfg.Name).Err(err).Stringer("event", ev.Type).Msg("event dropped")
	}
}

func (r *Reader) transportError(err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return &TransportError{Source: r.cfg.Name, Op: "read", Err: err}
}

func (r *Reader) closeSource() {
	r.closeOnce.Do(func() {
		r.closeErr = r.src.Close()
		if r.closeErr != nil {
			log.Debug().Str("reader", r.cfg.Name).Err(r.closeErr).Msg("close source")
		}
	})
}

// Start runs the reader on a new goroutine. Use Stop to cancel it and Done or
// Err to learn when and how it ended.
func (r *Reader) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go func() {
		err := r.Run(ctx)
		r.mu.Lock()
		r.err = err
		r.mu.Unlock()
		close(r.done)
	}()
}

// Stop cancels a started reader and waits for it to close its source.
func (r *Reader) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	if cancel == nil {
		r.closeSource()
		return
	}
	cancel()
	<-done
}

// Done is closed when a started reader has returned. It is nil before Start.
func (r *Reader) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Err returns the error Run ended with, nil while running or on a clean exit.
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
