package ingress

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/kroliko/kafka-proxy/internal/netutil"
)

// TCP is a line-oriented MessageStream over accepted TCP connections.
type TCP struct {
	Address           string
	Base64            bool
	ConcurrencyLimitN int
	Log               *logrus.Logger
}

func (t *TCP) ConcurrencyLimit() int { return t.ConcurrencyLimitN }

func (t *TCP) Stream(ctx context.Context, shutdown <-chan struct{}) (<-chan Result, error) {
	ln, err := net.Listen("tcp", t.Address)
	if err != nil {
		return nil, err
	}
	return acceptLoop(ln, t.Base64, shutdown, t.Log), nil
}

// Unix is a line-oriented MessageStream over accepted Unix domain
// connections. The listener is released via the scoped-listener discipline
// so its bind path is unlinked on shutdown.
type Unix struct {
	Path              string
	Base64            bool
	ConcurrencyLimitN int
	Log               *logrus.Logger
}

func (u *Unix) ConcurrencyLimit() int { return u.ConcurrencyLimitN }

func (u *Unix) Stream(ctx context.Context, shutdown <-chan struct{}) (<-chan Result, error) {
	sl, err := netutil.ListenUnix(u.Path, u.Log)
	if err != nil {
		return nil, err
	}
	return acceptLoop(sl, u.Base64, shutdown, u.Log), nil
}

// acceptLoop runs the accept loop for any net.Listener: each accepted
// connection is handled in its own goroutine, with all connections' lines
// merging into a single capacity-1 channel (the channel itself is the
// backpressure point described by spec.md §4.6).
func acceptLoop(ln net.Listener, base64Enc bool, shutdown <-chan struct{}, log *logrus.Logger) <-chan Result {
	ch := make(chan Result, 1)

	go func() {
		<-shutdown
		ln.Close()
	}()

	go func() {
		defer close(ch)
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-shutdown:
					return
				default:
				}
				select {
				case ch <- Result{Err: err}:
				case <-shutdown:
					return
				}
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				scanLines(c, base64Enc, ch, shutdown, log)
			}(conn)
		}
	}()

	return ch
}
