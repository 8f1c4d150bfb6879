package scan

import (
	"context"
	"errors"
	"sync"
)

// Source is a running decoder, typically a camera stream.
// Decodes is closed once the source has stopped.
type Source interface {
	Decodes() <-chan string
	Stop() error
}

// Opener starts a Source.
type Opener func(ctx context.Context) (Source, error)

var ErrCameraOff = errors.New("camera is off")

// FeedSource is a Source fed by pushes, e.g. strings decoded in a browser and posted over HTTP.
type FeedSource struct {
	mu      sync.Mutex
	ch      chan string
	stopped bool
}

func NewFeedSource(buffer int) *FeedSource {
	return &FeedSource{ch: make(chan string, buffer)}
}

func (f *FeedSource) Decodes() <-chan string { return f.ch }

// Push hands raw to the session. It never blocks: a full buffer drops the decode.
func (f *FeedSource) Push(raw string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return false
	}
	select {
	case f.ch <- raw:
		return true
	default:
		return false
	}
}

func (f *FeedSource) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		f.stopped = true
		close(f.ch)
	}
	return nil
}

// Feed opens FeedSources and routes pushes to the one currently open.
type Feed struct {
	mu     sync.Mutex
	buffer int
	cur    *FeedSource
}

func NewFeed(buffer int) *Feed {
	if buffer < 1 {
		buffer = 1
	}
	return &Feed{buffer: buffer}
}

// Open satisfies Opener.
func (f *Feed) Open(context.Context) (Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cur = NewFeedSource(f.buffer)
	return f.cur, nil
}

// Push forwards raw to the open source. It fails with ErrCameraOff when no source is open.
func (f *Feed) Push(raw string) error {
	f.mu.Lock()
	src := f.cur
	f.mu.Unlock()
	if src == nil || src.isStopped() {
		return ErrCameraOff
	}
	src.Push(raw)
	return nil
}

func (f *FeedSource) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}
