package main

import (
	"context"
	"os"

	"dockman/internal/app"
	"dockman/internal/transports/cli"
	"dockman/pkg/logger"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	lg := logger.New(os.Getenv("LOG_LEVEL"))

	open := func(configPath string, dryRun bool) (cli.Service, error) {
		return app.Open(configPath, dryRun)
	}
	root := cli.New(open, buildVersion())
	if err := root.ExecuteContext(context.Background()); err != nil {
		lg.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func buildVersion() string {
	v := version
	if commit != "" {
		v += " (" + commit + ")"
	}
	if date != "" {
		v += " " + date
	}
	return v
}
