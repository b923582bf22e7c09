package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/smartcontractkit/chainlink-common/pkg/config"
)

const (
	DEFAULT_DATABASE_DRIVER    = "sqlite"
	DEFAULT_DATABASE_DSN       = "file:relayer.db?cache=shared"
	DEFAULT_NOTIFY_BUFFER_SIZE = 1024
	DEFAULT_SLACK_MIN_LEVEL    = "error"
)

// Config is the node configuration. Secrets are not part of it and are read
// from the environment by the binary.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Notify   NotifyConfig
	Chains   TOMLConfigs
}

type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver *string
	DSN    *string
}

// RedisConfig enables the redis backed cache and queue. Without a URL the node
// falls back to in-process implementations.
type RedisConfig struct {
	URL *config.URL
	// ConsumerGroup names the stream consumer group shared by node replicas.
	ConsumerGroup *string
	LockWait      *config.Duration
}

type NotifyConfig struct {
	BufferSize    *int
	SlackMinLevel *string
}

func (c *Config) SetDefaults() {
	if c.Database.Driver == nil {
		c.Database.Driver = ptr(DEFAULT_DATABASE_DRIVER)
	}
	if c.Database.DSN == nil {
		c.Database.DSN = ptr(DEFAULT_DATABASE_DSN)
	}
	if c.Redis.ConsumerGroup == nil {
		c.Redis.ConsumerGroup = ptr("relayers")
	}
	if c.Redis.LockWait == nil {
		c.Redis.LockWait = config.MustNewDuration(defaultRelayersSet.FundingLockTTL)
	}
	if c.Notify.BufferSize == nil {
		c.Notify.BufferSize = ptr(DEFAULT_NOTIFY_BUFFER_SIZE)
	}
	if c.Notify.SlackMinLevel == nil {
		c.Notify.SlackMinLevel = ptr(DEFAULT_SLACK_MIN_LEVEL)
	}
	for _, ch := range c.Chains {
		ch.SetDefaults()
	}
}

func (c *Config) ValidateConfig() (err error) {
	switch d := *c.Database.Driver; d {
	case "sqlite", "postgres":
	default:
		err = errors.Join(err, config.ErrInvalid{Name: "Database.Driver", Value: d, Msg: "must be sqlite or postgres"})
	}
	if *c.Database.DSN == "" {
		err = errors.Join(err, config.ErrEmpty{Name: "Database.DSN", Msg: "required"})
	}
	if *c.Notify.BufferSize <= 0 {
		err = errors.Join(err, config.ErrInvalid{Name: "Notify.BufferSize", Value: *c.Notify.BufferSize, Msg: "must be positive"})
	}
	if len(c.Chains) == 0 {
		err = errors.Join(err, config.ErrMissing{Name: "Chains", Msg: "must have at least one chain"})
	}
	return errors.Join(err, c.Chains.ValidateConfig())
}

// EnabledChains returns the chains not explicitly disabled.
func (c *Config) EnabledChains() (cs TOMLConfigs) {
	for _, ch := range c.Chains {
		if ch.IsEnabled() {
			cs = append(cs, ch)
		}
	}
	return
}

// Decode reads a TOML document, rejecting unknown fields, then applies
// defaults and validates the result.
func Decode(r io.Reader) (*Config, error) {
	var c Config
	d := toml.NewDecoder(r).DisallowUnknownFields()
	if err := d.Decode(&c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("failed to decode config: %s", strict.String())
		}
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	c.SetDefaults()
	if err := c.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Decode(bytes.NewReader(b))
}

func (c *Config) TOMLString() (string, error) {
	b, err := toml.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
