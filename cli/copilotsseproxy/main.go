package main

import (
	"os"

	proxycmder "github.com/wso2/copilotsse/cmd/copilotsse/serve/proxy"
)

func main() {
	cmd := proxycmder.NewProxyCmd()
	cmd.Use = "copilotsseproxy"
	cmd.SilenceUsage = true
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .copilotsse/ config directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
