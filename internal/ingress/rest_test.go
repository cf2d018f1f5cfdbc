package ingress

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	payload []byte
	err     error
}

func (r *recordingSender) Send(ctx context.Context, payload []byte) error {
	r.payload = payload
	return r.err
}

func TestRESTServeProducesOnSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	sender := &recordingSender{}
	r := &REST{Address: addr, Log: testLogger()}
	shutdown := make(chan struct{})

	go func() { _ = r.Serve(context.Background(), shutdown, sender) }()
	waitForListening(t, addr)

	resp, err := http.Post("http://"+addr+"/produce", "application/octet-stream", bytes.NewReader([]byte("hi")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "hi", string(sender.payload))

	close(shutdown)
}

func TestRESTServeReturns500OnSendError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	sender := &recordingSender{err: assertErr("boom")}
	r := &REST{Address: addr, Log: testLogger()}
	shutdown := make(chan struct{})

	go func() { _ = r.Serve(context.Background(), shutdown, sender) }()
	waitForListening(t, addr)

	resp, err := http.Post("http://"+addr+"/produce", "application/octet-stream", bytes.NewReader([]byte("hi")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	close(shutdown)
}

func waitForListening(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server on %s never started listening", addr)
}
