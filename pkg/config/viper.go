package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/wso2/copilotsse/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the COPILOTSSE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (COPILOTSSE_PROXY_LISTEN, COPILOTSSE_API_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: COPILOTSSE_PROXY_LISTEN, COPILOTSSE_STORAGE_DRIVER, etc.
	v.SetEnvPrefix("COPILOTSSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Proxy
	v.SetDefault("proxy.upstream", d.Proxy.Upstream)
	v.SetDefault("proxy.listen", d.Proxy.Listen)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Client
	v.SetDefault("client.target", d.Client.Target)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Publisher
	v.SetDefault("publisher.kafka_brokers", d.Publisher.KafkaBrokers)
	v.SetDefault("publisher.kafka_topic", d.Publisher.KafkaTopic)

	// Decoder
	v.SetDefault("decoder.strict", d.Decoder.Strict)
	v.SetDefault("decoder.data_separator", d.Decoder.DataSeparator)
	v.SetDefault("decoder.max_frame_bytes", d.Decoder.MaxFrameBytes)
}

// StorageFromViper reads the storage section. A sqlite path set while the
// driver is in-memory selects the sqlite driver, so "--sqlite path" alone
// is enough to record to disk.
func StorageFromViper(v *viper.Viper) StorageConfig {
	s := StorageConfig{
		Driver:      v.GetString("storage.driver"),
		SQLitePath:  v.GetString("storage.sqlite_path"),
		PostgresDSN: v.GetString("storage.postgres_dsn"),
	}
	if (s.Driver == "" || s.Driver == DriverInMemory) && s.SQLitePath != "" {
		s.Driver = DriverSQLite
	}
	return s
}

// PublisherFromViper reads the publisher section.
func PublisherFromViper(v *viper.Viper) PublisherConfig {
	return PublisherConfig{
		KafkaBrokers: v.GetStringSlice("publisher.kafka_brokers"),
		KafkaTopic:   v.GetString("publisher.kafka_topic"),
	}
}

// DecoderFromViper reads the decoder section.
func DecoderFromViper(v *viper.Viper) DecoderConfig {
	return DecoderConfig{
		Strict:        v.GetBool("decoder.strict"),
		DataSeparator: v.GetString("decoder.data_separator"),
		MaxFrameBytes: v.GetInt("decoder.max_frame_bytes"),
	}
}
