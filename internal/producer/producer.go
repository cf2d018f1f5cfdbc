// Package producer implements the shared producer façade: it frames a
// payload, submits it to Kafka with a bounded deadline, and on any failure
// appends the original payload to a dead-letter log. It owns the
// request/produced counters described by spec.md §4.4.
package producer

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/kroliko/kafka-proxy/internal/frame"
)

// SendTimeout is the hard deadline on a single produce attempt.
const SendTimeout = 3000 * time.Millisecond

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_proxy_producer_requests_total",
		Help: "Number of send attempts, labelled by success.",
	}, []string{"success"})

	producedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kafka_proxy_produced_total",
		Help: "Number of records successfully produced to Kafka.",
	})
)

func init() {
	prometheus.MustRegister(requestsTotal, producedTotal)
}

// syncProducer is the subset of sarama.SyncProducer this package depends
// on. A real *sarama.SyncProducer satisfies it automatically; tests supply
// a lightweight fake instead of the full sarama interface.
type syncProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

// Producer wraps a Kafka sync producer with framing, a bounded send
// deadline, and dead-letter handling.
type Producer struct {
	topic   string
	client  syncProducer
	framer  *frame.Framer
	deadLog *DeadLetterLog
	log     *logrus.Logger
}

// New constructs a Producer. deadLog may be nil if no dead-letter log was
// configured; framer may be nil (or schema-less) to pass payloads through
// unchanged.
func New(topic string, client sarama.SyncProducer, framer *frame.Framer, deadLog *DeadLetterLog, log *logrus.Logger) *Producer {
	return &Producer{topic: topic, client: client, framer: framer, deadLog: deadLog, log: log}
}

// Send encodes payload, submits it to Kafka bounded by SendTimeout, and
// updates counters. On any failure it appends the original payload to the
// dead-letter log, if configured, before returning the error.
func (p *Producer) Send(ctx context.Context, payload []byte) error {
	err := p.send(ctx, payload)
	if err != nil {
		requestsTotal.WithLabelValues("false").Inc()
		if p.deadLog != nil {
			if dlErr := p.deadLog.Append(payload); dlErr != nil {
				p.log.WithError(dlErr).Error("dead letter log: append failed")
			}
		}
		return err
	}
	requestsTotal.WithLabelValues("true").Inc()
	producedTotal.Inc()
	return nil
}

func (p *Producer) send(ctx context.Context, payload []byte) error {
	encoded, err := p.framer.Encode(payload)
	if err != nil {
		return fmt.Errorf("producer: encode: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, SendTimeout)
	defer cancel()

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.ByteEncoder(encoded),
	}

	type result struct {
		err error
	}
	done := make(chan result, 1)
	go func() {
		_, _, sendErr := p.client.SendMessage(msg)
		done <- result{err: sendErr}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("producer: send: %w", r.err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("producer: send: %w", ctx.Err())
	}
}

// Close releases the underlying Kafka client and dead-letter log.
func (p *Producer) Close() error {
	var firstErr error
	if err := p.client.Close(); err != nil {
		firstErr = err
	}
	if p.deadLog != nil {
		if err := p.deadLog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
