package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mirrochat/e2ee-client/internal/client"
	"github.com/mirrochat/e2ee-client/internal/config"
	"github.com/mirrochat/e2ee-client/internal/logger"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	log := logger.NewLogger("e2ee-client")
	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	token := os.Getenv("E2EE_BEARER_TOKEN")
	if token == "" {
		log.Fatal().Msg("E2EE_BEARER_TOKEN is required")
	}

	ctx := context.Background()
	prompter := client.NewTerminalPrompter(os.Stdin, os.Stdout)

	app, err := client.NewApp(ctx, cfg, prompter, token, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init e2ee client error")
	}
	defer app.Close()

	if err = app.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("e2ee client run error")
	}
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
