package producer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// Config collects the settings needed to build a producer.
type Config struct {
	BootstrapServers []string
	Topic            string

	// ProducerConfig holds raw librdkafka-style key/value overrides, taken
	// from repeated producer_config KEY=VALUE flags and then, with lower
	// precedence, KAFKA_PROXY_PRODUCER_<KEY> environment variables. Keys
	// that reach BuildSaramaConfig unrecognised are logged at WARN and
	// skipped rather than failing startup, since the set of valid
	// librdkafka keys is far larger than what sarama exposes.
	ProducerConfig map[string]string

	DeadLettersPath string
}

// EnvKeyToConfigKey translates a KAFKA_PROXY_PRODUCER_<KEY> environment
// variable suffix into the downstream config key: lowercase, then `_`→`.`,
// then `__`→`_` (a literal double underscore escapes a single underscore
// in the resulting key).
func EnvKeyToConfigKey(envKey string) string {
	lower := strings.ToLower(envKey)
	// Protect literal "__" sequences, translate remaining single
	// underscores to dots, then restore the protected sequences as "_".
	const sentinel = "\x00"
	protected := strings.ReplaceAll(lower, "__", sentinel)
	dotted := strings.ReplaceAll(protected, "_", ".")
	return strings.ReplaceAll(dotted, sentinel, "_")
}

// BuildSaramaConfig translates librdkafka-style producer_config keys into a
// sarama.Config. Recognised keys cover the common producer tuning surface;
// anything else is logged and ignored rather than treated as fatal.
func BuildSaramaConfig(kv map[string]string, log *logrus.Logger) (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.ClientID = "kafka-proxy"

	for key, value := range kv {
		if err := applyKey(cfg, key, value); err != nil {
			if _, unknown := err.(*unknownKeyError); unknown {
				log.WithFields(logrus.Fields{"key": key, "value": value}).
					Warn("producer config: unrecognised key, ignoring")
				continue
			}
			return nil, fmt.Errorf("producer config %q=%q: %w", key, value, err)
		}
	}
	return cfg, nil
}

type unknownKeyError struct{ key string }

func (e *unknownKeyError) Error() string { return fmt.Sprintf("unrecognised producer config key %q", e.key) }

func applyKey(cfg *sarama.Config, key, value string) error {
	switch key {
	case "acks":
		return applyAcks(cfg, value)
	case "compression.type":
		return applyCompression(cfg, value)
	case "linger.ms":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Producer.Flush.Frequency = time.Duration(ms) * time.Millisecond
		return nil
	case "batch.size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Producer.Flush.Bytes = n
		return nil
	case "batch.num.messages":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Producer.Flush.Messages = n
		return nil
	case "retries", "message.send.max.retries":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Producer.Retry.Max = n
		return nil
	case "retry.backoff.ms":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Producer.Retry.Backoff = time.Duration(ms) * time.Millisecond
		return nil
	case "max.request.size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Producer.MaxMessageBytes = n
		return nil
	case "client.id":
		cfg.ClientID = value
		return nil
	case "socket.timeout.ms":
		ms, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Net.DialTimeout = time.Duration(ms) * time.Millisecond
		return nil
	case "enable.idempotence":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		cfg.Producer.Idempotent = b
		if b {
			cfg.Producer.RequiredAcks = sarama.WaitForAll
			cfg.Net.MaxOpenRequests = 1
		}
		return nil
	case "security.protocol":
		return applySecurityProtocol(cfg, value)
	case "sasl.mechanism", "sasl.mechanisms":
		cfg.Net.SASL.Mechanism = sarama.SASLMechanism(value)
		return nil
	case "sasl.username":
		cfg.Net.SASL.User = value
		return nil
	case "sasl.password":
		cfg.Net.SASL.Password = value
		return nil
	default:
		return &unknownKeyError{key: key}
	}
}

func applyAcks(cfg *sarama.Config, value string) error {
	switch value {
	case "0":
		cfg.Producer.RequiredAcks = sarama.NoResponse
	case "1":
		cfg.Producer.RequiredAcks = sarama.WaitForLocal
	case "-1", "all":
		cfg.Producer.RequiredAcks = sarama.WaitForAll
	default:
		return fmt.Errorf("invalid acks value %q", value)
	}
	return nil
}

func applyCompression(cfg *sarama.Config, value string) error {
	switch value {
	case "none":
		cfg.Producer.Compression = sarama.CompressionNone
	case "gzip":
		cfg.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		return fmt.Errorf("invalid compression.type value %q", value)
	}
	return nil
}

func applySecurityProtocol(cfg *sarama.Config, value string) error {
	switch value {
	case "PLAINTEXT":
	case "SASL_PLAINTEXT":
		cfg.Net.SASL.Enable = true
	case "SSL":
		cfg.Net.TLS.Enable = true
	case "SASL_SSL":
		cfg.Net.SASL.Enable = true
		cfg.Net.TLS.Enable = true
	default:
		return fmt.Errorf("invalid security.protocol value %q", value)
	}
	return nil
}
