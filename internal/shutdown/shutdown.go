// Package shutdown implements the broadcast shutdown signal and
// completion-acknowledgement coordination described by spec.md §4.9.
//
// A Signaller exposes a single channel that every subscriber reads from
// directly; closing a Go channel wakes every receiver simultaneously, so
// child tasks spawned after the parent has already observed the signal
// still see it the moment they select on the same channel — no explicit
// resubscription bookkeeping is needed.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// Signaller is a broadcast close-once signal, re-derived from the shape
// referenced (but not itself defined) by the schema-registry decode
// components: NewSignaller, CloseAtLeisureChan, CloseNow.
type Signaller struct {
	mu     sync.Mutex
	ch     chan struct{}
	closed bool
}

// NewSignaller constructs an unclosed Signaller.
func NewSignaller() *Signaller {
	return &Signaller{ch: make(chan struct{})}
}

// CloseAtLeisureChan returns the channel that closes once CloseNow is
// called. Every caller of this method, however many times and from
// whatever goroutine, observes the same close.
func (s *Signaller) CloseAtLeisureChan() <-chan struct{} {
	return s.ch
}

// CloseNow closes the signal. Safe to call more than once or concurrently.
func (s *Signaller) CloseNow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ch)
		s.closed = true
	}
}

// Coordinator owns the process-wide shutdown broadcast and a capacity-1
// unicast channel carrying the server task's completion acknowledgement.
type Coordinator struct {
	shutdown *Signaller
	done     chan struct{}
	log      *logrus.Logger
}

// New constructs a Coordinator.
func New(log *logrus.Logger) *Coordinator {
	return &Coordinator{
		shutdown: NewSignaller(),
		done:     make(chan struct{}, 1),
		log:      log,
	}
}

// ShutdownChan is the broadcast channel every ingress task and in-flight
// send selects on.
func (c *Coordinator) ShutdownChan() <-chan struct{} {
	return c.shutdown.CloseAtLeisureChan()
}

// MarkServerDone records that the server task's run loop has drained. Safe
// to call at most once productively; further calls are dropped rather than
// blocking, since the channel has capacity 1.
func (c *Coordinator) MarkServerDone() {
	select {
	case c.done <- struct{}{}:
	default:
	}
}

// Run blocks until shutdown should begin — the server task finished on its
// own, the metrics task reported a fatal error, or an OS signal arrived
// (SIGINT on every platform; SIGTERM is also registered, a no-op on
// platforms where the OS never sends it) — then fires the broadcast signal
// and waits for the server task's completion acknowledgement.
func (c *Coordinator) Run(ctx context.Context, metricsErr <-chan error) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-c.done:
		// The server task has already acknowledged completion; fire the
		// broadcast so every other subscriber stops too.
		c.shutdown.CloseNow()
		return
	case err := <-metricsErr:
		if err != nil {
			c.log.WithError(err).Error("metrics task failed, shutting down")
		}
	case <-sigCtx.Done():
		c.log.Info("shutdown signal received")
	}

	c.shutdown.CloseNow()

	select {
	case <-c.done:
	case <-time.After(30 * time.Second):
		c.log.Warn("timed out waiting for server task to finish shutting down")
	}
}
