package ingress

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pull"
	_ "go.nanomsg.org/mangos/v3/transport/all"
)

// Nng is a pull-socket MessageStream over nanomsg-next-gen, supplementing
// the distilled set of ingress sources: grounded on
// original_source/src/server/stream/nng.rs and examples/nng.rs, which
// bind a Pull0 (or Sub0) socket and forward each received message. This
// adaptation covers the Pull0 case only — the proxy has no use for
// pub/sub fan-out semantics.
type Nng struct {
	Address           string
	ConcurrencyLimitN int
	Log               *logrus.Logger
}

func (n *Nng) ConcurrencyLimit() int { return n.ConcurrencyLimitN }

func (n *Nng) Stream(ctx context.Context, shutdown <-chan struct{}) (<-chan Result, error) {
	sock, err := pull.NewSocket()
	if err != nil {
		return nil, err
	}
	if err := sock.Listen(n.Address); err != nil {
		sock.Close()
		return nil, err
	}

	ch := make(chan Result, 1)

	go func() {
		<-shutdown
		sock.Close()
	}()

	go func() {
		defer close(ch)
		for {
			msg, err := sock.Recv()
			if err != nil {
				select {
				case <-shutdown:
					return
				default:
				}
				if err == mangos.ErrClosed {
					return
				}
				select {
				case ch <- Result{Err: err}:
				case <-shutdown:
					return
				}
				continue
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
