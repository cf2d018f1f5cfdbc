package ingress

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/kroliko/kafka-proxy/internal/netutil"
)

const datagramBufferSize = 8192

// UDP is a datagram-oriented MessageStream. A fixed 8192-byte receive
// buffer means datagrams larger than that are truncated, a documented
// limitation rather than an error.
type UDP struct {
	Address           string
	ConcurrencyLimitN int
	Log               *logrus.Logger
}

func (u *UDP) ConcurrencyLimit() int { return u.ConcurrencyLimitN }

func (u *UDP) Stream(ctx context.Context, shutdown <-chan struct{}) (<-chan Result, error) {
	conn, err := net.ListenPacket("udp", u.Address)
	if err != nil {
		return nil, err
	}
	return datagramLoop(conn, shutdown, u.Log), nil
}

// Unixgram is the unix-dgram analogue of UDP.
type Unixgram struct {
	Path              string
	ConcurrencyLimitN int
	Log               *logrus.Logger
}

func (u *Unixgram) ConcurrencyLimit() int { return u.ConcurrencyLimitN }

func (u *Unixgram) Stream(ctx context.Context, shutdown <-chan struct{}) (<-chan Result, error) {
	conn, err := netutil.ListenUnixgram(u.Path, u.Log)
	if err != nil {
		return nil, err
	}
	return datagramLoop(conn, shutdown, u.Log), nil
}

func datagramLoop(conn net.PacketConn, shutdown <-chan struct{}, log *logrus.Logger) <-chan Result {
	ch := make(chan Result, 1)

	go func() {
		<-shutdown
		conn.Close()
	}()

	go func() {
		defer close(ch)
		buf := make([]byte, datagramBufferSize)
		for {
			n, _, err := conn.ReadFrom(buf)
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

			// Copy out of the shared buffer before handing it downstream;
			// the next ReadFrom call will overwrite buf in place.
			payload := make([]byte, n)
			copy(payload, buf[:n])

			select {
			case ch <- Result{Payload: payload}:
			case <-shutdown:
				return
			}
		}
	}()

	return ch
}
