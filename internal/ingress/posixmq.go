package ingress

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/kroliko/kafka-proxy/internal/posixmq"
)

// PosixMQ is a datagram-oriented MessageStream backed by a POSIX message
// queue. The blocking receive runs on a dedicated goroutine and observes
// shutdown via context cancellation.
type PosixMQ struct {
	Name              string
	Capacity          int
	ConcurrencyLimitN int
	Log               *logrus.Logger
}

func (p *PosixMQ) ConcurrencyLimit() int { return p.ConcurrencyLimitN }

func (p *PosixMQ) Stream(ctx context.Context, shutdown <-chan struct{}) (<-chan Result, error) {
	q, err := posixmq.Open(p.Name, p.Capacity)
	if err != nil {
		return nil, err
	}

	recvCtx, cancel := context.WithCancel(ctx)
	go func() {
		<-shutdown
		cancel()
	}()

	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		defer q.Close()
		for {
			msg, err := q.Receive(recvCtx)
			if err != nil {
				select {
				case <-shutdown:
					return
				default:
				}
				select {
				case ch <- Result{Err: err}:
				case <-shutdown:
				}
				return
			}
			select {
			case ch <- Result{Payload: msg}:
			case <-shutdown:
				return
			}
		}
	}()
	return ch, nil
}
