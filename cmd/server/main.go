package main

import (
	"fmt"
	"log"
	"os"
	"sqpplus/internal/api"
	"sqpplus/internal/app"
	"sqpplus/internal/config"
	"sqpplus/internal/logging"

	"go.uber.org/zap"
)

func main() {
	fmt.Println("Starting SQP Plus Daemon...")

	configDir, err := config.Dir()
	if err != nil {
		log.Fatalf("Error getting user config directory: %v", err)
	}

	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logger, err := logging.New(config.IsDev())
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}

	logger.Info("configuration loaded",
		zap.String("config_dir", configDir),
		zap.String("database", cfg.DatabasePath),
		zap.String("default_base_path", cfg.DefaultBasePath),
		zap.String("rcon_secret_storage", cfg.RconSecretStorage),
		zap.String("cleanup_on_failure", cfg.CleanupOnFailure),
	)

	if err := os.MkdirAll(cfg.DefaultBasePath, 0755); err != nil {
		logger.Fatal("could not create default base path", zap.String("path", cfg.DefaultBasePath), zap.Error(err))
	}

	container, err := app.NewContainer(cfg, logger)
	if err != nil {
		logger.Fatal("could not open catalog", zap.Error(err))
	}
	defer container.Close()

	report := container.Provisioner.Validator().CheckDependencies()
	if len(report.Missing) > 0 {
		logger.Warn("deployments will be rejected until dependencies are installed", zap.Strings("missing", report.Missing))
	}

	apiServer := api.NewAPIServer(container)

	listenAddr := fmt.Sprintf(":%d", cfg.ListenPort())
	if err := apiServer.Start(listenAddr); err != nil {
		logger.Fatal("API error", zap.Error(err))
	}
}
