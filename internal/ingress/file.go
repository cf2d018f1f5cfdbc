package ingress

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// File is a line-oriented MessageStream reading from a named file.
type File struct {
	Path              string
	Base64            bool
	ConcurrencyLimitN int
	Log               *logrus.Logger
}

func (f *File) ConcurrencyLimit() int { return f.ConcurrencyLimitN }

func (f *File) Stream(ctx context.Context, shutdown <-chan struct{}) (<-chan Result, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("ingress: open %q: %w", f.Path, err)
	}

	ch := make(chan Result)
	go func() {
		defer close(ch)
		defer fh.Close()
		scanLines(fh, f.Base64, ch, shutdown, f.Log)
	}()
	return ch, nil
}
