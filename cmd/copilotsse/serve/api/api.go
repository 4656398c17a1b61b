// Package apicmder provides the API copilotsse server cobra command.
package apicmder

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wso2/copilotsse/api"
	"github.com/wso2/copilotsse/pkg/config"
	"github.com/wso2/copilotsse/pkg/logger"
	storageutils "github.com/wso2/copilotsse/pkg/storage/utils"
)

type apiCommander struct {
	listen        string
	storageDriver string
	sqlitePath    string
	postgresDSN   string
	strict        bool
	join          string
	maxFrameBytes int
	disableMCP    bool
	debug         bool

	cfg    *config.Config
	logger *slog.Logger
}

const apiLongDesc string = `Run the copilotsse API server for decoding stream text and inspecting
recorded streams.

Endpoints:
  GET  /streams                     List recorded streams
  GET  /streams/:id/events          Decoded events of a stream in order
  GET  /streams/:id/transcript      The reply assembled from a stream
  POST /decode                      Decode a body of SSE text
  /mcp                              MCP tools over streamable HTTP`

const apiShortDesc string = "Run the copilotsse API server"

var apiFlags = []string{
	config.FlagAPIListenStandalone,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagStrict,
	config.FlagJoin,
	config.FlagMaxFrameBytes,
}

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, apiFlags)

			cmder.cfg = &config.Config{
				API: config.APIConfig{
					Listen: v.GetString("api.listen"),
				},
				Storage: config.StorageFromViper(v),
				Decoder: config.DecoderFromViper(v),
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

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddBoolFlag(cmd, config.Flags, config.FlagStrict, &cmder.strict)
	config.AddStringFlag(cmd, config.Flags, config.FlagJoin, &cmder.join)
	config.AddIntFlag(cmd, config.Flags, config.FlagMaxFrameBytes, &cmder.maxFrameBytes)
	cmd.Flags().BoolVar(&cmder.disableMCP, "no-mcp", false, "Do not mount the MCP endpoint")

	return cmd
}

func (c *apiCommander) run(ctx context.Context) error {
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

	server, err := api.NewServer(api.Config{
		ListenAddr:     c.cfg.API.Listen,
		DecoderOptions: c.cfg.Decoder.Options(),
		DisableMCP:     c.disableMCP,
	}, driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	defer server.Shutdown()

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		return nil
	}
}
