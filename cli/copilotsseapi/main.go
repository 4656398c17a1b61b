package main

import (
	"os"

	apicmder "github.com/wso2/copilotsse/cmd/copilotsse/serve/api"
)

func main() {
	cmd := apicmder.NewAPICmd()
	cmd.Use = "copilotsseapi"
	cmd.SilenceUsage = true
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .copilotsse/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
