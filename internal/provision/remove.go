package provision

import (
	"context"
	"fmt"
	"os"
	"sqpplus/internal/domain"
	"sqpplus/internal/metrics"
	"sqpplus/internal/script"
	"sqpplus/internal/shell"
	"sqpplus/internal/validate"

	"go.uber.org/zap"
)

// Remove stops the instance's screen session and deletes its catalog record.
// With purge the instance directory and its scripts are deleted as well; the
// shared steamcmd installation is kept.
func (p *Provisioner) Remove(ctx context.Context, name string, purge bool) error {
	if !validate.ValidName(name) {
		return fmt.Errorf("%w: %q", domain.ErrNotFound, name)
	}
	if !p.claim(name) {
		return fmt.Errorf("%w: '%s' is being deployed or removed", domain.ErrNameConflict, name)
	}
	defer p.release(name)

	inst, err := p.store.GetInstanceByName(name)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCatalog, err)
	}
	if inst == nil {
		return fmt.Errorf("%w: %q", domain.ErrNotFound, name)
	}

	log := p.log.With(zap.String("instance", name))

	// The session may already be gone; that is not an error here.
	if err := p.quitSession(ctx, inst.SessionName); err != nil {
		log.Warn("screen session not stopped", zap.Error(err))
	}

	if err := p.store.DeleteInstance(name); err != nil {
		return err
	}
	metrics.Removals.Inc()

	if purge {
		layout := script.NewLayout(inst.BasePath, inst.Name)
		if layout.SharesInstaller() {
			log.Warn("instance directory is the shared steamcmd directory, keeping it", zap.String("path", layout.InstanceDir))
		}
		for _, path := range layout.OwnedPaths() {
			if err := os.RemoveAll(path); err != nil {
				return fmt.Errorf("%w: record removed but %s could not be deleted: %v", domain.ErrFilesystem, path, err)
			}
		}
	}

	log.Info("instance removed", zap.Bool("purge", purge))
	return nil
}

func (p *Provisioner) quitSession(ctx context.Context, session string) error {
	res, err := p.exec.Run(ctx, shell.Command{
		Name: validate.SessionTool,
		Args: []string{"-S", session, "-X", "quit"},
	})
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("screen -S %s -X quit exited with status %d: %s", session, res.ExitCode, tail(res.Stderr))
	}
	return nil
}
