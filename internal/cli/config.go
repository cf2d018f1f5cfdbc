// Package cli defines the command-line surface of the proxy: one
// top-level flag plus a sub-command per ingress source, each carrying a
// shared block of producer and schema-registry flags.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/kroliko/kafka-proxy/internal/producer"
	"github.com/kroliko/kafka-proxy/internal/registry"
)

const envProducerConfigPrefix = "KAFKA_PROXY_PRODUCER_"

// SourceConfig holds the options recognised by every ingress sub-command,
// though not every field applies to every source (e.g. capacity only
// means something for posix-mq).
type SourceConfig struct {
	ConcurrencyLimit int
	Base64           bool
	Address          string
	Path             string
	Capacity         int
}

// RunConfig is the fully parsed result of one invocation: global flags,
// the selected source's options, the producer it feeds, and an optional
// schema registry lookup to perform before the producer is built.
type RunConfig struct {
	PrometheusAddress string
	Source            SourceConfig
	Producer          producer.Config
	Registry          *registry.Config
}

var sourceFlags = []cli.Flag{
	&cli.IntFlag{Name: "concurrency-limit", Value: 1024, Usage: "maximum concurrently in-flight sends for this source"},
	&cli.BoolFlag{Name: "base64", Value: false, Usage: "treat each line as base64-encoded"},
	&cli.StringFlag{Name: "address", Usage: "bind address for network-bound sources"},
	&cli.StringFlag{Name: "path", Aliases: []string{"file"}, Usage: "filesystem path (file source) or socket path (unix / unix-dgram / posix-mq name)"},
	&cli.IntFlag{Name: "capacity", Value: 10, Usage: "POSIX message queue capacity"},
}

var producerFlags = []cli.Flag{
	&cli.StringFlag{Name: "bootstrap-server", Value: "127.0.0.1:9092", Usage: "comma-separated list of Kafka bootstrap brokers"},
	&cli.StringFlag{Name: "topic", Required: true, Usage: "destination topic"},
	&cli.StringSliceFlag{Name: "producer-config", Usage: "repeated KEY=VALUE librdkafka-style producer override"},
	&cli.StringFlag{Name: "dead-letters", Usage: "path to an append-only dead-letter log for failed sends"},
	&cli.StringFlag{Name: "schema-registry-url", Usage: "Confluent Schema Registry base URL"},
	&cli.IntFlag{Name: "schema-id", Usage: "use this schema id directly, bypassing subject lookup"},
	&cli.BoolFlag{Name: "topic-name", Usage: "subject-name strategy: <topic>-value (the default)"},
	&cli.StringFlag{Name: "record-name", Usage: "subject-name strategy: <record>"},
	&cli.StringFlag{Name: "topic-record-name", Usage: "subject-name strategy: <topic>-<record>"},
}

// sourceFlagsAndProducerFlags returns one combined flag slice for a
// sub-command, so every source offers both its own options and the full
// producer/schema-registry block.
func sourceFlagsAndProducerFlags() []cli.Flag {
	flags := make([]cli.Flag, 0, len(sourceFlags)+len(producerFlags))
	flags = append(flags, sourceFlags...)
	flags = append(flags, producerFlags...)
	return flags
}

// parseSourceConfig reads the shared source flags off a command context.
func parseSourceConfig(c *cli.Context) SourceConfig {
	return SourceConfig{
		ConcurrencyLimit: c.Int("concurrency-limit"),
		Base64:           c.Bool("base64"),
		Address:          c.String("address"),
		Path:             c.String("path"),
		Capacity:         c.Int("capacity"),
	}
}

// parseProducerConfig reads the producer and schema-registry flags,
// merges in KAFKA_PROXY_PRODUCER_<KEY> environment overrides at lower
// precedence than explicit --producer-config flags, and enforces that at
// most one subject-name strategy is selected.
func parseProducerConfig(c *cli.Context) (producer.Config, *registry.Config, error) {
	kv, err := parseProducerConfigPairs(c.StringSlice("producer-config"))
	if err != nil {
		return producer.Config{}, nil, err
	}
	applyProducerConfigEnvOverrides(kv)

	cfg := producer.Config{
		BootstrapServers: splitAndTrim(c.String("bootstrap-server")),
		Topic:            c.String("topic"),
		ProducerConfig:   kv,
		DeadLettersPath:  c.String("dead-letters"),
	}

	reg, err := parseRegistryConfig(c, cfg.Topic)
	if err != nil {
		return producer.Config{}, nil, err
	}
	return cfg, reg, nil
}

func parseProducerConfigPairs(pairs []string) (map[string]string, error) {
	kv := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("producer-config %q: expected KEY=VALUE", pair)
		}
		kv[key] = value
	}
	return kv, nil
}

// applyProducerConfigEnvOverrides scans the process environment for
// KAFKA_PROXY_PRODUCER_<KEY> variables and merges them into kv without
// overwriting a key already set from an explicit flag.
func applyProducerConfigEnvOverrides(kv map[string]string) {
	for _, entry := range os.Environ() {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(name, envProducerConfigPrefix) {
			continue
		}
		key := producer.EnvKeyToConfigKey(strings.TrimPrefix(name, envProducerConfigPrefix))
		if _, exists := kv[key]; !exists {
			kv[key] = value
		}
	}
}

func parseRegistryConfig(c *cli.Context, topic string) (*registry.Config, error) {
	url := c.String("schema-registry-url")
	if url == "" {
		return nil, nil
	}

	strategies := 0
	cfg := registry.Config{URL: url, Topic: topic}
	if c.IsSet("schema-id") {
		id := c.Int("schema-id")
		cfg.SchemaID = &id
	}
	if c.Bool("topic-name") {
		cfg.Strategy = registry.TopicName
		strategies++
	}
	if v := c.String("record-name"); v != "" {
		cfg.Strategy = registry.RecordName
		cfg.RecordName = v
		strategies++
	}
	if v := c.String("topic-record-name"); v != "" {
		cfg.Strategy = registry.TopicRecordName
		cfg.RecordName = v
		strategies++
	}
	if strategies > 1 {
		return nil, fmt.Errorf("at most one of --topic-name, --record-name, --topic-record-name may be set")
	}
	if strategies == 0 && cfg.SchemaID == nil {
		cfg.Strategy = registry.TopicName
	}
	return &cfg, nil
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
