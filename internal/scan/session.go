package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahinestrog/frontcounter/internal/model"
)

// Handler resolves and applies one accepted scan. It runs on a context that is
// not cancelled when the camera stops.
type Handler func(ctx context.Context, ev model.ScanEvent)

var ErrSessionClosed = errors.New("scan session closed")

// Session owns one flow's camera, ingestion filter and single-slot mailbox.
// Decodes are filtered as they arrive; an accepted scan is placed in the
// mailbox and resolved by the consumer goroutine, in presentation order.
type Session struct {
	name   string
	filter *Filter
	open   Opener
	handle Handler
	now    func() time.Time
	log    zerolog.Logger

	mu       sync.Mutex
	src      Source
	pumpDone chan struct{}
	mailbox  chan model.ScanEvent
	started  bool
	closed   bool
	consumer sync.WaitGroup
}

type Option func(*Session)

func WithClock(now func() time.Time) Option { return func(s *Session) { s.now = now } }

func WithLogger(l zerolog.Logger) Option { return func(s *Session) { s.log = l } }

func NewSession(name string, filter *Filter, open Opener, handle Handler, opts ...Option) *Session {
	s := &Session{
		name:    name,
		filter:  filter,
		open:    open,
		handle:  handle,
		now:     time.Now,
		log:     zerolog.Nop(),
		mailbox: make(chan model.ScanEvent, 1),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With().Str("flow", name).Logger()
	return s
}

// Start launches the consumer. Handlers inherit ctx values but not its cancellation.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	hctx := context.WithoutCancel(ctx)
	s.consumer.Add(1)
	go func() {
		defer s.consumer.Done()
		for ev := range s.mailbox {
			s.handle(hctx, ev)
			s.filter.Resolved(s.now())
		}
	}()
}

// StartCamera opens the source and begins pumping its decodes into the filter.
// Calling it while the camera is on is a no-op.
func (s *Session) StartCamera(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.src != nil {
		return nil
	}
	src, err := s.open(ctx)
	if err != nil {
		return err
	}
	s.src = src
	done := make(chan struct{})
	s.pumpDone = done
	go func() {
		defer close(done)
		for raw := range src.Decodes() {
			s.Offer(raw)
		}
	}()
	s.log.Info().Msg("camera started")
	return nil
}

// StopCamera stops the source immediately. A scan already handed to the
// consumer still completes.
func (s *Session) StopCamera() error {
	s.mu.Lock()
	src, done := s.src, s.pumpDone
	s.src, s.pumpDone = nil, nil
	s.mu.Unlock()
	if src == nil {
		return nil
	}
	err := src.Stop()
	<-done
	s.log.Info().Msg("camera stopped")
	return err
}

// Offer runs one raw decode through the filter and reports whether it was
// accepted. Nothing is accepted before Start, since no consumer would drain it.
func (s *Session) Offer(raw string) bool {
	ev := model.ScanEvent{RawPayload: raw, ObservedAt: s.now()}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.log.Warn().Str("payload", raw).Msg("decode dropped, session not started")
		return false
	}
	if s.closed || !s.filter.Offer(ev) {
		s.log.Debug().Str("payload", raw).Msg("decode dropped")
		return false
	}
	select {
	case s.mailbox <- ev:
	default:
		// Unreachable while the filter holds a single scan in flight.
		s.filter.Resolved(ev.ObservedAt)
		return false
	}
	s.log.Info().Str("payload", raw).Msg("scan accepted")
	return true
}

func (s *Session) CameraOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src != nil
}

func (s *Session) State() State { return s.filter.State(s.now()) }

// Close stops the camera and waits for an in-flight scan to be resolved.
// Once closed, StartCamera cannot reopen the source.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.mailbox)
	s.mu.Unlock()

	err := s.StopCamera()
	s.consumer.Wait()
	return err
}
