package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wso2/copilotsse/pkg/sse"
)

// Config represents the persistent copilotsse configuration stored as
// config.toml in the .copilotsse/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Proxy     ProxyConfig     `toml:"proxy"`
	API       APIConfig       `toml:"api"`
	Client    ClientConfig    `toml:"client"`
	Storage   StorageConfig   `toml:"storage"`
	Publisher PublisherConfig `toml:"publisher"`
	Decoder   DecoderConfig   `toml:"decoder"`
}

// ProxyConfig holds relay proxy settings.
type ProxyConfig struct {
	Upstream string `toml:"upstream,omitempty"`
	Listen   string `toml:"listen,omitempty"`
}

// APIConfig holds query API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a copilot
// backend (directly or through the relay). Target is a full URL.
type ClientConfig struct {
	Target string `toml:"target,omitempty"`
}

// StorageConfig selects where decoded events are recorded.
type StorageConfig struct {
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// PublisherConfig holds event publishing settings. Publishing is disabled
// while KafkaBrokers is empty.
type PublisherConfig struct {
	KafkaBrokers []string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string   `toml:"kafka_topic,omitempty"`
}

// DecoderConfig holds the defaults applied to every SSE decoder.
type DecoderConfig struct {
	Strict        bool   `toml:"strict,omitempty"`
	DataSeparator string `toml:"data_separator,omitempty"`
	MaxFrameBytes int    `toml:"max_frame_bytes,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"proxy.upstream": {
		get: func(c *Config) string { return c.Proxy.Upstream },
		set: func(c *Config, v string) error { c.Proxy.Upstream = v; return nil },
	},
	"proxy.listen": {
		get: func(c *Config) string { return c.Proxy.Listen },
		set: func(c *Config, v string) error { c.Proxy.Listen = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.target": {
		get: func(c *Config) string { return c.Client.Target },
		set: func(c *Config, v string) error { c.Client.Target = v; return nil },
	},
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error {
			if !isValidDriver(v) {
				return fmt.Errorf("invalid value for storage.driver: %q (available: %s)", v, strings.Join(StorageDrivers(), ", "))
			}
			c.Storage.Driver = v
			return nil
		},
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"publisher.kafka_brokers": {
		get: func(c *Config) string { return strings.Join(c.Publisher.KafkaBrokers, ",") },
		set: func(c *Config, v string) error { c.Publisher.KafkaBrokers = splitList(v); return nil },
	},
	"publisher.kafka_topic": {
		get: func(c *Config) string { return c.Publisher.KafkaTopic },
		set: func(c *Config, v string) error { c.Publisher.KafkaTopic = v; return nil },
	},
	"decoder.strict": {
		get: func(c *Config) string { return strconv.FormatBool(c.Decoder.Strict) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for decoder.strict: %w", err)
			}
			c.Decoder.Strict = b
			return nil
		},
	},
	"decoder.data_separator": {
		get: func(c *Config) string { return c.Decoder.DataSeparator },
		set: func(c *Config, v string) error { c.Decoder.DataSeparator = v; return nil },
	},
	"decoder.max_frame_bytes": {
		get: func(c *Config) string {
			if c.Decoder.MaxFrameBytes == 0 {
				return ""
			}
			return strconv.Itoa(c.Decoder.MaxFrameBytes)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for decoder.max_frame_bytes: %w", err)
			}
			if n < 0 {
				return fmt.Errorf("invalid value for decoder.max_frame_bytes: %d is negative", n)
			}
			c.Decoder.MaxFrameBytes = n
			return nil
		},
	},
}

// splitList splits a comma separated value, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Options converts the decoder settings into SSE decoder options.
func (d DecoderConfig) Options() []sse.Option {
	opts := []sse.Option{
		sse.WithStrictKinds(d.Strict),
		sse.WithDataSeparator(d.DataSeparator),
	}
	if d.MaxFrameBytes > 0 {
		opts = append(opts, sse.WithMaxFrameBytes(d.MaxFrameBytes))
	}
	return opts
}
