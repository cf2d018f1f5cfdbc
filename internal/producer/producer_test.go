package producer

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kroliko/kafka-proxy/internal/frame"
)

type fakeSyncProducer struct {
	sendErr error
	sent    []*sarama.ProducerMessage
}

func (f *fakeSyncProducer) SendMessage(msg *sarama.ProducerMessage) (int32, int64, error) {
	if f.sendErr != nil {
		return 0, 0, f.sendErr
	}
	f.sent = append(f.sent, msg)
	return 0, int64(len(f.sent) - 1), nil
}

func (f *fakeSyncProducer) Close() error { return nil }

func newTestProducer(t *testing.T, client syncProducer, deadLog *DeadLetterLog) *Producer {
	t.Helper()
	log := logrus.New()
	log.SetOutput(os.Stderr)
	return &Producer{
		topic:   "orders",
		client:  client,
		framer:  frame.NoSchema(),
		deadLog: deadLog,
		log:     log,
	}
}

func TestSendSuccessPassesThroughPayload(t *testing.T) {
	fake := &fakeSyncProducer{}
	p := newTestProducer(t, fake, nil)

	err := p.Send(context.Background(), []byte(`{"a":1}`))
	require.NoError(t, err)
	require.Len(t, fake.sent, 1)

	val, err := fake.sent[0].Value.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), val)
}

func TestSendFailureAppendsDeadLetter(t *testing.T) {
	dir := t.TempDir()
	deadLog := OpenDeadLetterLog(dir + "/dead.log")
	defer deadLog.Close()

	fake := &fakeSyncProducer{sendErr: errors.New("boom")}
	p := newTestProducer(t, fake, deadLog)

	err := p.Send(context.Background(), []byte("payload"))
	assert.Error(t, err)

	contents, readErr := os.ReadFile(dir + "/dead.log")
	require.NoError(t, readErr)
	assert.Equal(t, "cGF5bG9hZA==\n", string(contents))
}

func TestSendWithoutDeadLetterLogJustReturnsError(t *testing.T) {
	fake := &fakeSyncProducer{sendErr: errors.New("boom")}
	p := newTestProducer(t, fake, nil)

	err := p.Send(context.Background(), []byte("payload"))
	assert.Error(t, err)
}
