package main

import (
	"github.com/CloudNativeWorks/mod-updater/cmd"
	"github.com/CloudNativeWorks/mod-updater/pkg/logger"
)

var version = "dev"

func main() {
	if err := cmd.Execute(version); err != nil {
		logger.Fatalf("Error: %v", err)
	}
}
