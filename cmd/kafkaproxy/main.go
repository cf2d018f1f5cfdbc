package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/kroliko/kafka-proxy/internal/cli"
	"github.com/kroliko/kafka-proxy/internal/frame"
	"github.com/kroliko/kafka-proxy/internal/ingress"
	"github.com/kroliko/kafka-proxy/internal/producer"
	"github.com/kroliko/kafka-proxy/internal/registry"
	"github.com/kroliko/kafka-proxy/internal/shutdown"
	"github.com/kroliko/kafka-proxy/internal/telemetry"
)

const telemetryInterval = 5 * time.Second

func main() {
	log := logrus.New()

	app := cli.NewApp(func(ctx context.Context, source string, cfg cli.RunConfig) error {
		return run(ctx, log, source, cfg)
	})

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("kafka-proxy: configuration error")
	}
}

// run wires one invocation's worth of producer, optional schema
// resolution, ingress source, telemetry, and shutdown coordination. Any
// error returned here is a startup-time configuration error and is fatal.
func run(ctx context.Context, log *logrus.Logger, source string, cfg cli.RunConfig) error {
	coord := shutdown.New(log)

	framer, err := resolveFramer(ctx, cfg.Registry)
	if err != nil {
		return fmt.Errorf("resolving schema: %w", err)
	}

	saramaCfg, err := producer.BuildSaramaConfig(cfg.Producer.ProducerConfig, log)
	if err != nil {
		return fmt.Errorf("building producer config: %w", err)
	}

	client, err := sarama.NewSyncProducer(cfg.Producer.BootstrapServers, saramaCfg)
	if err != nil {
		return fmt.Errorf("connecting to brokers: %w", err)
	}
	defer client.Close()

	var deadLog *producer.DeadLetterLog
	if cfg.Producer.DeadLettersPath != "" {
		deadLog = producer.OpenDeadLetterLog(cfg.Producer.DeadLettersPath)
		defer deadLog.Close()
	}

	prod := producer.New(cfg.Producer.Topic, client, framer, deadLog, log)

	metricsErr := make(chan error, 1)
	if cfg.PrometheusAddress != "" {
		telemetryClient, err := sarama.NewClient(cfg.Producer.BootstrapServers, saramaCfg)
		if err != nil {
			return fmt.Errorf("connecting telemetry client: %w", err)
		}
		defer telemetryClient.Close()

		if err := startMetricsServer(cfg.PrometheusAddress, telemetryClient, coord, metricsErr, log); err != nil {
			return fmt.Errorf("binding metrics endpoint: %w", err)
		}
	}

	shutdownCh := coord.ShutdownChan()

	if pushSource, ok := newPushSource(source, cfg.Source, log); ok {
		go func() {
			defer coord.MarkServerDone()
			if err := pushSource.Serve(ctx, shutdownCh, prod); err != nil {
				log.WithError(err).Error("push source terminated with error")
			}
		}()
	} else {
		stream, err := newPullSource(source, cfg.Source, log)
		if err != nil {
			return err
		}
		msgCh, err := stream.Stream(ctx, shutdownCh)
		if err != nil {
			return fmt.Errorf("starting %s source: %w", source, err)
		}
		go func() {
			defer coord.MarkServerDone()
			runPullSource(ctx, stream.ConcurrencyLimit(), msgCh, shutdownCh, prod, log)
		}()
	}

	coord.Run(ctx, metricsErr)
	return nil
}

// runPullSource drains a pre-started MessageStream's channel under the
// fan-in pipeline's concurrency ceiling.
func runPullSource(ctx context.Context, limit int, msgCh <-chan ingress.Result, shutdownCh <-chan struct{}, sender ingress.Sender, log *logrus.Logger) {
	adaptor := preStartedStream{limit: limit, ch: msgCh}
	if err := ingress.Run(ctx, adaptor, shutdownCh, sender, log); err != nil {
		log.WithError(err).Error("pull source pipeline terminated with error")
	}
}

// preStartedStream adapts a channel that Stream has already produced back
// into the MessageStream interface ingress.Run expects: main needs the
// channel in hand (to report startup errors) before it can hand control
// to the fan-in pipeline.
type preStartedStream struct {
	limit int
	ch    <-chan ingress.Result
}

func (a preStartedStream) ConcurrencyLimit() int { return a.limit }

func (a preStartedStream) Stream(context.Context, <-chan struct{}) (<-chan ingress.Result, error) {
	return a.ch, nil
}

func resolveFramer(ctx context.Context, cfg *registry.Config) (*frame.Framer, error) {
	if cfg == nil {
		return frame.NoSchema(), nil
	}
	resolved, err := registry.Resolve(ctx, *cfg)
	if err != nil {
		return nil, err
	}
	return frame.New(resolved.ID, resolved.Schema), nil
}

// startMetricsServer binds the /metrics HTTP endpoint and starts the
// telemetry collector's background refresh loop. A bind error is returned
// directly; a later fatal serve error is reported on metricsErr, which the
// shutdown coordinator treats the same as a server-task failure.
func startMetricsServer(address string, client sarama.Client, coord *shutdown.Coordinator, metricsErr chan<- error, log *logrus.Logger) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	collector := telemetry.New(client, log)
	go collector.Run(telemetryInterval, coord.ShutdownChan())

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(collector))
	srv := &http.Server{Addr: address, Handler: mux}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			metricsErr <- err
		}
	}()
	go func() {
		<-coord.ShutdownChan()
		_ = srv.Close()
	}()
	return nil
}

func newPushSource(source string, cfg cli.SourceConfig, log *logrus.Logger) (ingress.PushServer, bool) {
	switch source {
	case "rest":
		return &ingress.REST{Address: cfg.Address, Log: log}, true
	case "coap":
		return &ingress.CoAP{Address: cfg.Address, Log: log}, true
	default:
		return nil, false
	}
}

func newPullSource(source string, cfg cli.SourceConfig, log *logrus.Logger) (ingress.MessageStream, error) {
	switch source {
	case "stdin":
		return &ingress.Stdin{Base64: cfg.Base64, ConcurrencyLimitN: cfg.ConcurrencyLimit, Log: log}, nil
	case "file":
		return &ingress.File{Path: cfg.Path, Base64: cfg.Base64, ConcurrencyLimitN: cfg.ConcurrencyLimit, Log: log}, nil
	case "tcp":
		return &ingress.TCP{Address: cfg.Address, Base64: cfg.Base64, ConcurrencyLimitN: cfg.ConcurrencyLimit, Log: log}, nil
	case "unix":
		return &ingress.Unix{Path: cfg.Path, Base64: cfg.Base64, ConcurrencyLimitN: cfg.ConcurrencyLimit, Log: log}, nil
	case "udp":
		return &ingress.UDP{Address: cfg.Address, ConcurrencyLimitN: cfg.ConcurrencyLimit, Log: log}, nil
	case "unix-dgram":
		return &ingress.Unixgram{Path: cfg.Path, ConcurrencyLimitN: cfg.ConcurrencyLimit, Log: log}, nil
	case "posix-mq":
		return &ingress.PosixMQ{Name: cfg.Path, Capacity: cfg.Capacity, ConcurrencyLimitN: cfg.ConcurrencyLimit, Log: log}, nil
	case "nng":
		return &ingress.Nng{Address: cfg.Address, ConcurrencyLimitN: cfg.ConcurrencyLimit, Log: log}, nil
	default:
		return nil, fmt.Errorf("unrecognised source %q", source)
	}
}
