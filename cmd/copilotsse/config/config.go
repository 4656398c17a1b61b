// Package configcmder provides the config command for managing persistent
// copilotsse configuration stored in the .copilotsse/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wso2/copilotsse/pkg/cliui"
	"github.com/wso2/copilotsse/pkg/config"
)

const configLongDesc string = `Manage persistent copilotsse configuration.

Configuration is stored as config.toml in the .copilotsse/ directory and
provides default values for command flags. CLI flags and COPILOTSSE_*
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  proxy.upstream, proxy.listen, api.listen, client.target,
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  publisher.kafka_brokers, publisher.kafka_topic,
  decoder.strict, decoder.data_separator, decoder.max_frame_bytes

Use subcommands to get, set, or list configuration values:
  copilotsse config set <key> <value>    Set a configuration value
  copilotsse config get <key>            Get a configuration value
  copilotsse config list                 List all configuration values

Examples:
  copilotsse config set proxy.upstream https://copilot.example.com
  copilotsse config set storage.driver sqlite
  copilotsse config get decoder.max_frame_bytes
  copilotsse config list`

const configShortDesc string = "Manage persistent copilotsse configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// validKeysCompletion completes the first argument with config key names.
func validKeysCompletion(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// printTarget writes which config file a command is operating on.
func printTarget(w io.Writer, cfger *config.Configer) {
	if target := cfger.GetTarget(); target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}
