package ingress

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

// Stdin is a line-oriented MessageStream reading os.Stdin.
type Stdin struct {
	Base64            bool
	ConcurrencyLimitN int
	Log               *logrus.Logger
}

func (s *Stdin) ConcurrencyLimit() int { return s.ConcurrencyLimitN }

func (s *Stdin) Stream(ctx context.Context, shutdown <-chan struct{}) (<-chan Result, error) {
	ch := make(chan Result)
	go func() {
		defer close(ch)
		scanLines(os.Stdin, s.Base64, ch, shutdown, s.Log)
	}()
	return ch, nil
}
