package config

// Flags is the registry of every flag shared across copilotsse commands.
var Flags = FlagSet{
	FlagProxyListen: {
		Name:        "proxy-listen",
		Shorthand:   "p",
		ViperKey:    "proxy.listen",
		Description: "Address for the relay proxy to listen on",
	},
	FlagAPIListen: {
		Name:        "api-listen",
		Shorthand:   "a",
		ViperKey:    "api.listen",
		Description: "Address for the API server to listen on",
	},
	FlagUpstream: {
		Name:        "upstream",
		Shorthand:   "u",
		ViperKey:    "proxy.upstream",
		Description: "Copilot backend URL the relay forwards to",
	},
	FlagTarget: {
		Name:        "target",
		Shorthand:   "t",
		ViperKey:    "client.target",
		Description: "Copilot backend or relay URL to send prompts to",
	},
	FlagStorageDriver: {
		Name:        "storage",
		ViperKey:    "storage.driver",
		Description: "Storage driver for recorded events (inmemory, sqlite, postgres)",
	},
	FlagSQLite: {
		Name:        "sqlite",
		Shorthand:   "s",
		ViperKey:    "storage.sqlite_path",
		Description: "Path to the SQLite database used by the sqlite storage driver",
	},
	FlagPostgres: {
		Name:        "postgres",
		ViperKey:    "storage.postgres_dsn",
		Description: "PostgreSQL connection string used by the postgres storage driver",
	},
	FlagKafkaBrokers: {
		Name:        "kafka-brokers",
		ViperKey:    "publisher.kafka_brokers",
		Description: "Kafka brokers to publish decoded events to (publishing is off when empty)",
	},
	FlagKafkaTopic: {
		Name:        "kafka-topic",
		ViperKey:    "publisher.kafka_topic",
		Description: "Kafka topic for decoded events",
	},
	FlagStrict: {
		Name:        "strict",
		ViperKey:    "decoder.strict",
		Description: "Report frames with unknown event kinds as errors instead of dropping them",
	},
	FlagJoin: {
		Name:        "join",
		ViperKey:    "decoder.data_separator",
		Description: "Separator used to join the data lines of a frame",
	},
	FlagMaxFrameBytes: {
		Name:        "max-frame-bytes",
		ViperKey:    "decoder.max_frame_bytes",
		Description: "Largest incomplete frame the decoder buffers (0 for no limit)",
	},
	FlagProxyListenStandalone: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "proxy.listen",
		Description: "Address for the relay proxy to listen on",
	},
	FlagAPIListenStandalone: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "api.listen",
		Description: "Address for the API server to listen on",
	},
}
