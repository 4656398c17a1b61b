package main

import (
	"os"

	copilotssecmder "github.com/wso2/copilotsse/cmd/copilotsse"
)

func main() {
	cmd := copilotssecmder.NewCopilotSSECmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
