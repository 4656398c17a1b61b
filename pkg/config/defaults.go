package config

import "slices"

const (
	defaultUpstream    = "http://localhost:9090"
	defaultProxyListen = ":8080"
	defaultAPIListen   = ":8081"

	defaultClientTarget = "http://localhost:8080"

	defaultStorageDriver = DriverInMemory

	defaultKafkaTopic = "copilotsse.events"

	// defaultMaxFrameBytes matches the 1MB line limit used when scanning
	// recorded streams.
	defaultMaxFrameBytes = 1024 * 1024
)

// Storage driver names accepted by storage.driver.
const (
	DriverInMemory = "inmemory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// StorageDrivers returns the accepted storage.driver values.
func StorageDrivers() []string {
	return []string{DriverInMemory, DriverSQLite, DriverPostgres}
}

func isValidDriver(name string) bool {
	return slices.Contains(StorageDrivers(), name)
}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Proxy: ProxyConfig{
			Upstream: defaultUpstream,
			Listen:   defaultProxyListen,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			Target: defaultClientTarget,
		},
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		Publisher: PublisherConfig{
			KafkaTopic: defaultKafkaTopic,
		},
		Decoder: DecoderConfig{
			MaxFrameBytes: defaultMaxFrameBytes,
		},
	}
}
