package ingress

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	return log
}

type fakeStream struct {
	n     int
	limit int
}

func (f *fakeStream) ConcurrencyLimit() int { return f.limit }

func (f *fakeStream) Stream(ctx context.Context, shutdown <-chan struct{}) (<-chan Result, error) {
	ch := make(chan Result)
	go func() {
		defer close(ch)
		for i := 0; i < f.n; i++ {
			select {
			case ch <- Result{Payload: []byte("x")}:
			case <-shutdown:
				return
			}
		}
	}()
	return ch, nil
}

type trackingSender struct {
	mu          sync.Mutex
	inFlight    int32
	maxInFlight int32
	total       int32
	delay       time.Duration
}

func (s *trackingSender) Send(ctx context.Context, payload []byte) error {
	cur := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)

	s.mu.Lock()
	if cur > s.maxInFlight {
		s.maxInFlight = cur
	}
	s.mu.Unlock()

	atomic.AddInt32(&s.total, 1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return nil
}

func TestRunNeverExceedsConcurrencyLimit(t *testing.T) {
	stream := &fakeStream{n: 200, limit: 8}
	sender := &trackingSender{delay: time.Millisecond}

	err := Run(context.Background(), stream, make(chan struct{}), sender, testLogger())
	require.NoError(t, err)

	assert.Equal(t, int32(200), atomic.LoadInt32(&sender.total))
	assert.LessOrEqual(t, sender.maxInFlight, int32(8))
}

func TestRunStopsOnShutdown(t *testing.T) {
	stream := &fakeStream{n: 1_000_000, limit: 4}
	sender := &trackingSender{delay: time.Millisecond}
	shutdown := make(chan struct{})

	done := make(chan struct{})
	go func() {
		_ = Run(context.Background(), stream, shutdown, sender, testLogger())
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	close(shutdown)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after shutdown")
	}
}

type erroringSender struct{}

func (erroringSender) Send(ctx context.Context, payload []byte) error {
	return assertErr("boom")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestRunLogsSendErrorsAndContinues(t *testing.T) {
	stream := &fakeStream{n: 5, limit: 2}
	err := Run(context.Background(), stream, make(chan struct{}), erroringSender{}, testLogger())
	assert.NoError(t, err)
}
