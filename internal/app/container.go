package app

import (
	"sqpplus/internal/config"
	"sqpplus/internal/provision"
	"sqpplus/internal/shell"
	"sqpplus/internal/storage"
	"sqpplus/internal/ws"

	"go.uber.org/zap"
)

// Container holds the process-wide services, built once at start-up.
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Store       *storage.GormStore
	Executor    shell.Executor
	Provisioner *provision.Provisioner
	HubManager  *ws.HubManager
}

func NewContainer(cfg *config.Config, log *zap.Logger) (*Container, error) {
	store, err := storage.NewGormStore(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	exec := shell.NewOSExecutor(cfg.CommandTimeout())

	return &Container{
		Config:      cfg,
		Logger:      log,
		Store:       store,
		Executor:    exec,
		Provisioner: provision.NewProvisioner(store, exec, log.Named("provision"), provision.OptionsFromConfig(cfg)),
		HubManager:  ws.NewHubManager(ws.DefaultHistorySize, ws.DefaultRetention, log.Named("ws")),
	}, nil
}

func (c *Container) Close() error {
	_ = c.Logger.Sync()
	return c.Store.Close()
}
