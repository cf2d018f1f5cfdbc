package ingress

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// REST is a PushServer exposing POST /produce: the request body is the
// payload, answered 204 on success or 500 on a send error.
type REST struct {
	Address string
	Log     *logrus.Logger
}

func (r *REST) Serve(ctx context.Context, shutdown <-chan struct{}, sender Sender) error {
	router := mux.NewRouter()
	router.HandleFunc("/produce", func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if err := sender.Send(req.Context(), body); err != nil {
			r.Log.WithError(err).Warn("rest: send failed")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodPost)

	srv := &http.Server{Addr: r.Address, Handler: handlers.CombinedLoggingHandler(r.Log.Writer(), router)}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-shutdown:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return <-errCh
	case err := <-errCh:
		return err
	}
}
