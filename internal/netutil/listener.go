// Package netutil implements the scoped-listener discipline of spec.md
// §4.8: filesystem-named sockets (unix, unix-dgram) carry their bind path
// alongside the handle, and unlink that path on release so a later run
// never trips over a stale inode.
package netutil

import (
	"net"
	"os"

	"github.com/sirupsen/logrus"
)

// ScopedListener pairs a net.Listener with the filesystem path it was
// bound to, unlinking that path after the listener is closed.
type ScopedListener struct {
	net.Listener
	path string
	log  *logrus.Logger
}

// ListenUnix binds a unix-domain stream listener at path.
func ListenUnix(path string, log *logrus.Logger) (*ScopedListener, error) {
	_ = os.Remove(path) // best-effort: clear a stale socket file from a prior crashed run
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return &ScopedListener{Listener: l, path: path, log: log}, nil
}

// Close closes the underlying listener handle first, then best-effort
// unlinks the bind path, logging (not failing) on unlink error.
func (s *ScopedListener) Close() error {
	err := s.Listener.Close()
	if rmErr := os.Remove(s.path); rmErr != nil && !os.IsNotExist(rmErr) {
		s.log.WithError(rmErr).WithField("path", s.path).Warn("failed to unlink socket path")
	}
	return err
}

// ScopedPacketConn is the unix-dgram analogue of ScopedListener.
type ScopedPacketConn struct {
	net.PacketConn
	path string
	log  *logrus.Logger
}

// ListenUnixgram binds a unix datagram socket at path.
func ListenUnixgram(path string, log *logrus.Logger) (*ScopedPacketConn, error) {
	_ = os.Remove(path)
	addr := &net.UnixAddr{Name: path, Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, err
	}
	return &ScopedPacketConn{PacketConn: conn, path: path, log: log}, nil
}

// Close closes the underlying socket first, then best-effort unlinks the
// bind path.
func (s *ScopedPacketConn) Close() error {
	err := s.PacketConn.Close()
	if rmErr := os.Remove(s.path); rmErr != nil && !os.IsNotExist(rmErr) {
		s.log.WithError(rmErr).WithField("path", s.path).Warn("failed to unlink socket path")
	}
	return err
}
