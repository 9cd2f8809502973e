package main

import (
	"os"

	"timecast/internal/cli"
	appLog "timecast/internal/log"
)

func main() {
	if err := cli.Execute(); err != nil {
		appLog.Error("timecast failed", err)
		os.Exit(1)
	}
}
