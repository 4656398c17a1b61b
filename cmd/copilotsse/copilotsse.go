// Package copilotssecmder
package copilotssecmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/wso2/copilotsse/cmd/copilotsse/config"
	decodecmder "github.com/wso2/copilotsse/cmd/copilotsse/decode"
	servecmder "github.com/wso2/copilotsse/cmd/copilotsse/serve"
	streamcmder "github.com/wso2/copilotsse/cmd/copilotsse/stream"
	versioncmder "github.com/wso2/copilotsse/cmd/copilotsse/version"
)

const copilotsseLongDesc string = `copilotsse decodes, relays, and records copilot reply streams.

Decode a captured stream:
  copilotsse decode reply.sse        Decode a file of SSE text
  copilotsse decode - --render       Decode stdin and render the reply

Talk to a copilot backend:
  copilotsse stream "How do I ..."   Send a prompt and stream the reply

Run services using:
  copilotsse serve api               Run the API server
  copilotsse serve proxy             Run the recording relay
  copilotsse serve                   Run both servers together`

const copilotsseShortDesc string = "copilotsse - copilot stream decoder"

func NewCopilotSSECmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "copilotsse",
		Short:        copilotsseShortDesc,
		Long:         copilotsseLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .copilotsse/ config directory")

	// Add subcommands
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(decodecmder.NewDecodeCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(streamcmder.NewStreamCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
