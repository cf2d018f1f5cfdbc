package ingress

import (
	"context"
	"io"

	coapNet "github.com/plgd-dev/go-coap/v3/net"
	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/mux"
	"github.com/plgd-dev/go-coap/v3/udp"
	"github.com/sirupsen/logrus"
)

// CoAP is a PushServer exposing POST "produce" over UDP: Changed on
// success, InternalServerError on a send error, NotFound for any other
// path, MethodNotAllowed for any other method on the known path.
//
// Like posix-mq, this ingress source has no grounding precedent anywhere in
// the retrieved pack; github.com/plgd-dev/go-coap/v3 is the most
// plausible actively-maintained ecosystem library for a Go CoAP server.
type CoAP struct {
	Address string
	Log     *logrus.Logger
}

func (c *CoAP) Serve(ctx context.Context, shutdown <-chan struct{}, sender Sender) error {
	router := mux.NewRouter()
	_ = router.Handle("/produce", mux.HandlerFunc(func(w mux.ResponseWriter, r *mux.Message) {
		if r.Code() != codes.POST {
			_ = w.SetResponse(codes.MethodNotAllowed, message.TextPlain, nil)
			return
		}

		var body []byte
		if r.Body() != nil {
			b, err := io.ReadAll(r.Body())
			if err != nil {
				_ = w.SetResponse(codes.InternalServerError, message.TextPlain, nil)
				return
			}
			body = b
		}

		if err := sender.Send(r.Context(), body); err != nil {
			c.Log.WithError(err).Warn("coap: send failed")
			_ = w.SetResponse(codes.InternalServerError, message.TextPlain, nil)
			return
		}
		_ = w.SetResponse(codes.Changed, message.TextPlain, nil)
	}))
	router.DefaultHandleFunc(func(w mux.ResponseWriter, r *mux.Message) {
		_ = w.SetResponse(codes.NotFound, message.TextPlain, nil)
	})

	listener, err := coapNet.NewListenUDP("udp", c.Address)
	if err != nil {
		return err
	}

	srv := udp.NewServer(udp.WithMux(router))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	select {
	case <-shutdown:
		srv.Stop()
		_ = listener.Close()
		return <-errCh
	case err := <-errCh:
		return err
	}
}
