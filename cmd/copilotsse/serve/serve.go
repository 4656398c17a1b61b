// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wso2/copilotsse/api"
	apicmder "github.com/wso2/copilotsse/cmd/copilotsse/serve/api"
	proxycmder "github.com/wso2/copilotsse/cmd/copilotsse/serve/proxy"
	"github.com/wso2/copilotsse/pkg/config"
	"github.com/wso2/copilotsse/pkg/copilot"
	"github.com/wso2/copilotsse/pkg/dotdir"
	eventstreamutils "github.com/wso2/copilotsse/pkg/eventstream/utils"
	"github.com/wso2/copilotsse/pkg/logger"
	storageutils "github.com/wso2/copilotsse/pkg/storage/utils"
	"github.com/wso2/copilotsse/proxy"
)

type ServeCommander struct {
	proxyListen   string
	apiListen     string
	upstream      string
	storageDriver string
	sqlitePath    string
	postgresDSN   string
	kafkaBrokers  []string
	kafkaTopic    string
	strict        bool
	join          string
	maxFrameBytes int
	disableMCP    bool
	debug         bool
	configDir     string

	cfg    *config.Config
	logger *slog.Logger
}

const serveLongDesc string = `Run copilotsse services.

Use subcommands to run individual services or all services together:
  copilotsse serve          Run both the relay proxy and API server together
  copilotsse serve api      Run just the API server
  copilotsse serve proxy    Run just the relay proxy

Both servers share one storage driver, so streams relayed by the proxy are
immediately visible through the API. Log records are also appended as JSON
to serve.log in the .copilotsse/ directory.`

const serveShortDesc string = "Run copilotsse services"

// serveLogFile receives a JSON copy of every record logged by "serve".
const serveLogFile = "serve.log"

// serveFlags are the registry keys bound to viper for "copilotsse serve".
var serveFlags = []string{
	config.FlagProxyListen,
	config.FlagAPIListen,
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

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)

			cmder.cfg = &config.Config{
				Proxy: config.ProxyConfig{
					Upstream: v.GetString("proxy.upstream"),
					Listen:   v.GetString("proxy.listen"),
				},
				API: config.APIConfig{
					Listen: v.GetString("api.listen"),
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

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListen, &cmder.proxyListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringSliceFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	config.AddBoolFlag(cmd, config.Flags, config.FlagStrict, &cmder.strict)
	config.AddStringFlag(cmd, config.Flags, config.FlagJoin, &cmder.join)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxFrameBytes, &cmder.maxFrameBytes)
	cmd.Flags().BoolVar(&cmder.disableMCP, "no-mcp", false, "Do not mount the MCP endpoint on the API server")

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(proxycmder.NewProxyCmd())

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	logFile, err := openServeLog(c.configDir)
	if err != nil {
		return err
	}
	defer logFile.Close()

	c.logger = logger.Multi(
		logger.New(logger.ForCLI(c.debug)),
		logger.New(logger.WithDebug(c.debug), logger.WithJSON(true), logger.WithWriter(logFile)),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg, err := copilot.NewRegistry()
	if err != nil {
		return fmt.Errorf("creating event registry: %w", err)
	}

	// Create shared storage driver
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

	decoderOpts := c.cfg.Decoder.Options()

	p, err := proxy.New(proxy.Config{
		ListenAddr:     c.cfg.Proxy.Listen,
		UpstreamURL:    c.cfg.Proxy.Upstream,
		Registry:       reg,
		Publisher:      publisher,
		DecoderOptions: decoderOpts,
	}, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}
	defer p.Close()

	apiServer, err := api.NewServer(api.Config{
		ListenAddr:     c.cfg.API.Listen,
		Registry:       reg,
		DecoderOptions: decoderOpts,
		DisableMCP:     c.disableMCP,
	}, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	defer apiServer.Shutdown()

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("proxy error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		return nil
	}
}

// openServeLog opens serve.log in the copilotsse directory for appending.
func openServeLog(configDir string) (*os.File, error) {
	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, serveLogFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	return f, nil
}
