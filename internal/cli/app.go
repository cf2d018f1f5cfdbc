package cli

import (
	"context"

	"github.com/urfave/cli/v2"
)

// Runner is invoked once a sub-command's flags have been parsed into a
// RunConfig naming the selected ingress source.
type Runner func(ctx context.Context, source string, cfg RunConfig) error

// sources lists every recognised sub-command name, in the order they
// appear in --help.
var sources = []string{
	"stdin", "file", "tcp", "udp", "unix", "unix-dgram", "posix-mq", "rest", "coap", "nng",
}

// NewApp builds the top-level CLI application: a global --prometheus flag
// plus one sub-command per ingress source, each sharing the same producer
// and schema-registry flag block. run is called once flags for the chosen
// source have been parsed.
func NewApp(run Runner) *cli.App {
	app := &cli.App{
		Name:  "kafka-proxy",
		Usage: "bridge line, datagram, and request-oriented ingress sources into a Kafka topic",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "prometheus", Usage: "bind address for the /metrics HTTP endpoint; disabled if unset"},
		},
	}

	for _, name := range sources {
		app.Commands = append(app.Commands, newSourceCommand(name, run))
	}
	return app
}

func newSourceCommand(source string, run Runner) *cli.Command {
	return &cli.Command{
		Name:  source,
		Usage: "read from " + source + " and produce each payload to the configured topic",
		Flags: sourceFlagsAndProducerFlags(),
		Action: func(c *cli.Context) error {
			producerCfg, registryCfg, err := parseProducerConfig(c)
			if err != nil {
				return err
			}
			cfg := RunConfig{
				PrometheusAddress: c.String("prometheus"),
				Source:            parseSourceConfig(c),
				Producer:          producerCfg,
				Registry:          registryCfg,
			}
			return run(c.Context, source, cfg)
		},
	}
}
