package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/edgeflare/ktable/pkg/table"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

const (
	DefaultVersion        = "2.1.1"
	DefaultConnectTimeout = 30 * time.Second

	OffsetOldest = "oldest"
	OffsetNewest = "newest"
)

var ErrNoBrokers = errors.New("no kafka brokers configured")

// Config represents the broker settings of a table. Brokers come from
// bootstrap.servers; everything else from the nested "kafka" property.
type Config struct {
	Brokers        []string      `mapstructure:"-"`
	Version        string        `mapstructure:"version"`
	ClientID       string        `mapstructure:"clientID"`
	Offset         string        `mapstructure:"offset"`
	ConnectTimeout time.Duration `mapstructure:"connectTimeout"`
	SASL           *SASL         `mapstructure:"sasl"`
	TLS            *TLS          `mapstructure:"tls"`
}

// SASL represents SASL authentication configuration
type SASL struct {
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	Algorithm string `mapstructure:"algorithm"`
	Enable    bool   `mapstructure:"enable"`
}

// TLS represents TLS configuration
type TLS struct {
	CertFile   string `mapstructure:"certFile"`
	KeyFile    string `mapstructure:"keyFile"`
	CAFile     string `mapstructure:"caFile"`
	Enable     bool   `mapstructure:"enable"`
	SkipVerify bool   `mapstructure:"skipVerify"`
}

// ConfigFromTable derives the broker configuration of t and fills in
// defaults for everything left unset.
func ConfigFromTable(t *table.Table) (*Config, error) {
	cfg := &Config{Brokers: t.Brokers()}

	tc := t.Config()
	if raw, ok := tc.Param(table.PropKafka); ok && raw != nil {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           cfg,
			MatchName:        strings.EqualFold,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka config decoder: %w", err)
		}
		if err := decoder.Decode(raw); err != nil {
			return nil, &table.InvalidPropertyError{Key: table.PropKafka, Value: raw, Cause: err}
		}
	}

	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.ClientID == "" {
		c.ClientID = "ktable-" + uuid.NewString()
	}
	if c.Offset == "" {
		c.Offset = OffsetNewest
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
}

// InitialOffset maps the configured offset name onto sarama's offsets.
func (c *Config) InitialOffset() (int64, error) {
	switch strings.ToLower(strings.TrimSpace(c.Offset)) {
	case "", OffsetNewest:
		return sarama.OffsetNewest, nil
	case OffsetOldest:
		return sarama.OffsetOldest, nil
	}
	return 0, fmt.Errorf("invalid offset %q, want %s or %s", c.Offset, OffsetOldest, OffsetNewest)
}

// ToSaramaConfig converts the Config to a sarama.Config
func (c *Config) ToSaramaConfig() (*sarama.Config, error) {
	conf := sarama.NewConfig()

	version, err := sarama.ParseKafkaVersion(c.Version)
	if err != nil {
		return nil, fmt.Errorf("error parsing Kafka version: %w", err)
	}
	conf.Version = version

	if c.SASL != nil && c.SASL.Enable {
		conf.Net.SASL.Enable = true
		conf.Net.SASL.User = c.SASL.Username
		conf.Net.SASL.Password = c.SASL.Password
		conf.Net.SASL.Handshake = true

		switch strings.ToLower(c.SASL.Algorithm) {
		case "sha512":
			conf.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return &XDGSCRAMClient{HashGeneratorFcn: SHA512} }
			conf.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		case "sha256":
			conf.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return &XDGSCRAMClient{HashGeneratorFcn: SHA256} }
			conf.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		case "", "plain":
			conf.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		default:
			return nil, fmt.Errorf("invalid SASL algorithm: %s", c.SASL.Algorithm)
		}
	}

	if c.TLS != nil && c.TLS.Enable {
		tlsConfig, err := createTLSConfiguration(c.TLS)
		if err != nil {
			return nil, err
		}
		conf.Net.TLS.Enable = true
		conf.Net.TLS.Config = tlsConfig
	}

	offset, err := c.InitialOffset()
	if err != nil {
		return nil, err
	}
	conf.Consumer.Offsets.Initial = offset
	conf.Consumer.Return.Errors = true

	conf.Producer.Retry.Max = 5
	conf.Producer.Retry.Backoff = time.Second
	conf.Producer.RequiredAcks = sarama.WaitForAll
	conf.Producer.Return.Successes = true
	conf.Producer.Return.Errors = true
	conf.ClientID = c.ClientID
	conf.Net.DialTimeout = c.ConnectTimeout
	conf.Metadata.Full = false

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sarama config: %w", err)
	}
	return conf, nil
}

func createTLSConfiguration(tlsCfg *TLS) (*tls.Config, error) {
	t := &tls.Config{
		InsecureSkipVerify: tlsCfg.SkipVerify,
	}

	if tlsCfg.CertFile != "" || tlsCfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(tlsCfg.CertFile, tlsCfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		t.Certificates = []tls.Certificate{cert}
	}

	if tlsCfg.CAFile != "" {
		caCert, err := os.ReadFile(tlsCfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("no certificates found in %s", tlsCfg.CAFile)
		}
		t.RootCAs = caCertPool
	}

	return t, nil
}

// GetBrokers returns the list of Kafka brokers
func (c *Config) GetBrokers() []string {
	return c.Brokers
}
