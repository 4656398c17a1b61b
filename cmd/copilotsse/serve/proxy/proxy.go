// Package proxycmder provides the relay proxy command.
package proxycmder

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wso2/copilotsse/pkg/config"
	eventstreamutils "github.com/wso2/copilotsse/pkg/eventstream/utils"
	"github.com/wso2/copilotsse/pkg/logger"
	storageutils "github.com/wso2/copilotsse/pkg/storage/utils"
	"github.com/wso2/copilotsse/proxy"
)

type proxyCommander struct {
	listen        string
	upstream      string
	storageDriver string
	sqlitePath    string
	postgresDSN   string
	kafkaBrokers  []string
	kafkaTopic    string
	strict        bool
	join          string
	maxFrameBytes int
	debug         bool

	cfg    *config.Config
	logger *slog.Logger
}

const proxyLongDesc string = `Run the relay proxy.

The proxy forwards every request to the configured upstream copilot backend
unchanged. Event stream replies are relayed to the client byte for byte while
being decoded, and every decoded event is recorded under the stream's ID
(the X-Copilot-Stream-Id header, generated when the client sends none).

Optionally publish decoded events to Kafka with --kafka-brokers.`

const proxyShortDesc string = "Run the copilotsse relay proxy"

var proxyFlags = []string{
	config.FlagProxyListenStandalone,
	config.FlagUpstream,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagStrict,
	config.FlagJoin,
	config.FlagMaxFrameBytes,
}

func NewProxyCmd() *cobra.Command {
	cmder := &proxyCommander{}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: proxyShortDesc,
		Long:  proxyLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, proxyFlags)

			cmder.cfg = &config.Config{
				Proxy: config.ProxyConfig{
					Upstream: v.GetString("proxy.upstream"),
					Listen:   v.GetString("proxy.listen"),
				},
				Storage:   config.StorageFromViper(v),
				Publisher: config.PublisherFromViper(v),
				Decoder:   config.DecoderFromViper(v),
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringSliceFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	config.AddBoolFlag(cmd, config.Flags, config.FlagStrict, &cmder.strict)
	config.AddStringFlag(cmd, config.Flags, config.FlagJoin, &cmder.join)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxFrameBytes, &cmder.maxFrameBytes)

	return cmd
}

func (c *proxyCommander) run(ctx context.Context) error {
	c.logger = logger.New(logger.ForCLI(c.debug))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	driver, err := storageutils.NewDriver(ctx, &storageutils.NewDriverOpts{
		DriverType:  c.cfg.Storage.Driver,
		SQLitePath:  c.cfg.Storage.SQLitePath,
		PostgresDSN: c.cfg.Storage.PostgresDSN,
		Logger:      c.logger,
	})
	if err != nil {
		return err
	}
	defer driver.Close()

	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		KafkaBrokers: c.cfg.Publisher.KafkaBrokers,
		KafkaTopic:   c.cfg.Publisher.KafkaTopic,
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer publisher.Close()

	if len(c.cfg.Publisher.KafkaBrokers) > 0 {
		c.logger.Info("publishing decoded events",
			"brokers", c.cfg.Publisher.KafkaBrokers,
			"topic", c.cfg.Publisher.KafkaTopic,
		)
	}

	p, err := proxy.New(proxy.Config{
		ListenAddr:     c.cfg.Proxy.Listen,
		UpstreamURL:    c.cfg.Proxy.Upstream,
		Publisher:      publisher,
		DecoderOptions: c.cfg.Decoder.Options(),
	}, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}
	defer p.Close()

	errChan := make(chan error, 1)
	go func() {
		errChan <- p.Run()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		return nil
	}
}
