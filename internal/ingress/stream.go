// Package ingress implements the two abstract ingress shapes of spec.md
// §4.6 — MessageStream (pull) and PushServer (push) — plus the bounded-
// concurrency fan-in pipeline of §4.7 that drives every MessageStream.
package ingress

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrencyLimit is used when a source's concurrency_limit is
// left at its zero value.
const DefaultConcurrencyLimit = 1024

// Result is one item produced by a MessageStream: either a payload or a
// stream-level error (malformed input, a transport read failure).
type Result struct {
	Payload []byte
	Err     error
}

// MessageStream is a pull-style ingress source.
type MessageStream interface {
	// ConcurrencyLimit bounds the number of in-flight Sender.Send calls
	// this stream may have outstanding at once.
	ConcurrencyLimit() int

	// Stream begins producing Results on the returned channel. The
	// channel closes when the source is exhausted or shutdown fires.
	Stream(ctx context.Context, shutdown <-chan struct{}) (<-chan Result, error)
}

// Sender is the subset of the producer façade the pipeline depends on.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
}

// PushServer is a push-style ingress source: it owns its own listener and
// invokes Sender.Send inline per request.
type PushServer interface {
	Serve(ctx context.Context, shutdown <-chan struct{}, sender Sender) error
}

// Run drives the fan-in pipeline described by spec.md §4.7: iterate the
// stream, bound concurrently in-flight sends to ConcurrencyLimit, and keep
// going until the stream ends or shutdown fires. Send errors are logged at
// WARN; stream errors are logged at ERROR. Neither terminates the
// pipeline early.
func Run(ctx context.Context, ms MessageStream, shutdown <-chan struct{}, sender Sender, log *logrus.Logger) error {
	ch, err := ms.Stream(ctx, shutdown)
	if err != nil {
		return err
	}

	limit := ms.ConcurrencyLimit()
	if limit <= 0 {
		limit = DefaultConcurrencyLimit
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case res, ok := <-ch:
			if !ok {
				break loop
			}
			if res.Err != nil {
				log.WithError(res.Err).Error("ingress stream error")
				continue
			}
			payload := res.Payload
			g.Go(func() error {
				if err := sender.Send(gctx, payload); err != nil {
					log.WithError(err).Warn("send failed")
				}
				return nil
			})
		}
	}

	return g.Wait()
}
