// ABOUTME: Lifecycle delivers "terminating" and "hidden" events to the cache.
// ABOUTME: Provides an OS-signal implementation and a manual one for tests and embedding.
package kvcache

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Event is a host lifecycle event that requires a durability checkpoint.
type Event int

const (
	// EventTerminate fires when the process is about to exit.
	EventTerminate Event = iota
	// EventHidden fires when the process moves to the background.
	EventHidden
)

func (e Event) String() string {
	switch e {
	case EventTerminate:
		return "terminate"
	case EventHidden:
		return "hidden"
	default:
		return "unknown"
	}
}

// Lifecycle lets a cache subscribe to host lifecycle events.
type Lifecycle interface {
	// Subscribe registers fn; the returned func removes it.
	Subscribe(fn func(Event)) (unsubscribe func())
}

// handlers is a subscriber list shared by the Lifecycle implementations.
type handlers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Event)
}

func (h *handlers) Subscribe(fn func(Event)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fns == nil {
		h.fns = make(map[int]func(Event))
	}
	id := h.next
	h.next++
	h.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.fns, id)
		})
	}
}

func (h *handlers) dispatch(ev Event) {
	h.mu.Lock()
	fns := make([]func(Event), 0, len(h.fns))
	for _, fn := range h.fns {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// ManualLifecycle fires events when told to.
type ManualLifecycle struct {
	handlers
}

// NewManualLifecycle returns a lifecycle driven by Terminate and Hide.
func NewManualLifecycle() *ManualLifecycle {
	return &ManualLifecycle{}
}

// Terminate delivers EventTerminate to every subscriber and returns when they finish.
func (m *ManualLifecycle) Terminate() {
	m.dispatch(EventTerminate)
}

// Hide delivers EventHidden to every subscriber.
func (m *ManualLifecycle) Hide() {
	m.dispatch(EventHidden)
}

// SignalLifecycle maps SIGINT/SIGTERM to EventTerminate and SIGHUP to EventHidden.
type SignalLifecycle struct {
	handlers
	ch             chan os.Signal
	done           chan struct{}
	afterTerminate func()
	stopOnce       sync.Once
}

// NewSignalLifecycle starts listening for signals. afterTerminate runs once the
// terminate handlers return, typically to exit the process; nil does nothing.
func NewSignalLifecycle(afterTerminate func()) *SignalLifecycle {
	s := &SignalLifecycle{
		ch:             make(chan os.Signal, 1),
		done:           make(chan struct{}),
		afterTerminate: afterTerminate,
	}
	signal.Notify(s.ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go s.loop()
	return s
}

func (s *SignalLifecycle) loop() {
	for {
		select {
		case <-s.done:
			return
		case sig := <-s.ch:
			if sig == syscall.SIGHUP {
				s.dispatch(EventHidden)
				continue
			}
			s.dispatch(EventTerminate)
			if s.afterTerminate != nil {
				s.afterTerminate()
			}
		}
	}
}

// Stop stops listening and restores default signal handling.
func (s *SignalLifecycle) Stop() {
	s.stopOnce.Do(func() {
		signal.Stop(s.ch)
		close(s.done)
	})
}
