// Package provision runs the deployment workflow of a game-server instance:
// directories, SteamCMD, scripts, the screen session and finally the catalog
// record.
package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sqpplus/internal/config"
	"sqpplus/internal/domain"
	"sqpplus/internal/metrics"
	"sqpplus/internal/script"
	"sqpplus/internal/shell"
	"sqpplus/internal/validate"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Options struct {
	SteamCMDURL   string
	SecretStorage string
	Cleanup       string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SteamCMDURL:   cfg.SteamCMDURL,
		SecretStorage: cfg.RconSecretStorage,
		Cleanup:       cfg.CleanupOnFailure,
	}
}

type Provisioner struct {
	store     domain.InstanceRepository
	exec      shell.Executor
	validator *validate.Validator
	log       *zap.Logger
	opts      Options

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewProvisioner(store domain.InstanceRepository, exec shell.Executor, log *zap.Logger, opts Options) *Provisioner {
	if opts.SteamCMDURL == "" {
		opts.SteamCMDURL = config.DefaultSteamCMDURL
	}
	if opts.SecretStorage == "" {
		opts.SecretStorage = config.SecretPlain
	}
	if opts.Cleanup == "" {
		opts.Cleanup = config.CleanupLeave
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Provisioner{
		store:     store,
		exec:      exec,
		validator: validate.New(exec),
		log:       log,
		opts:      opts,
		inflight:  make(map[string]struct{}),
	}
}

func (p *Provisioner) Validator() *validate.Validator {
	return p.validator
}

func (p *Provisioner) GetInstance(name string) (*domain.ServerInstance, error) {
	return p.store.GetInstanceByName(name)
}

func (p *Provisioner) ListInstances() ([]domain.ServerInstance, error) {
	return p.store.ListInstances()
}

// claim marks name as being worked on. Only one deploy or removal per name
// runs at a time inside this process; the catalog's unique index covers
// everything else.
func (p *Provisioner) claim(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[name]; busy {
		return false
	}
	p.inflight[name] = struct{}{}
	return true
}

func (p *Provisioner) release(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inflight, name)
}

// Deploy validates raw and runs every workflow step in order. The catalog is
// written only after all filesystem and process steps succeeded. Progress
// events are sent to progress when it is non-nil.
func (p *Provisioner) Deploy(ctx context.Context, requestID string, raw domain.RawDeployRequest, progress chan<- domain.ProgressEvent) (*domain.ServerInstance, error) {
	r := &run{
		p:         p,
		requestID: requestID,
		progress:  progress,
		log:       p.log.With(zap.String("instance", raw.Name), zap.String("request_id", requestID)),
	}

	inst, err := r.execute(ctx, raw)
	if err != nil {
		var stepErr *StepError
		if errors.As(err, &stepErr) {
			metrics.Deployments.WithLabelValues(string(stepErr.State)).Inc()
		}
		r.emit(ctx, StateFailed, err.Error(), err)
		return nil, err
	}

	metrics.Deployments.WithLabelValues("success").Inc()
	r.emit(ctx, StateDone, fmt.Sprintf("Deployment initiated for '%s'. SteamCMD update and server start running in screen session '%s'.", inst.Name, inst.SessionName), nil)
	return inst, nil
}

type run struct {
	p         *Provisioner
	requestID string
	progress  chan<- domain.ProgressEvent
	log       *zap.Logger

	req        *domain.DeployRequest
	layout     script.Layout
	secretHash string
	created    []string
	session    bool
	instance   *domain.ServerInstance
}

type step struct {
	state State
	fn    func(ctx context.Context) error
}

func (r *run) execute(ctx context.Context, raw domain.RawDeployRequest) (*domain.ServerInstance, error) {
	r.emit(ctx, StateValidating, "Validating request...", nil)
	if err := r.validate(raw); err != nil {
		return nil, &StepError{State: StateValidating, Err: err}
	}

	if !r.p.claim(r.req.Name) {
		return nil, &StepError{
			State: StateCheckingExisting,
			Err:   fmt.Errorf("%w: a deployment of '%s' is already in progress", domain.ErrNameConflict, r.req.Name),
		}
	}
	defer r.p.release(r.req.Name)

	steps := []step{
		{StateCheckingExisting, r.checkExisting},
		{StateEnsuringBasePath, r.ensureBasePath},
		{StateEnsuringInstaller, r.ensureInstaller},
		{StateWritingUpdateScript, r.writeUpdateScript},
		{StateWritingStartScript, r.writeStartScript},
		{StateWritingServerConfig, r.writeServerConfig},
		{StateWritingRconConfig, r.writeRconConfig},
		{StateLaunchingSession, r.launchSession},
		{StateCommitting, r.commit},
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, r.fail(ctx, s.state, err)
		}
		started := time.Now()
		err := s.fn(ctx)
		metrics.StepDuration.WithLabelValues(string(s.state)).Observe(time.Since(started).Seconds())
		if err != nil {
			return nil, r.fail(ctx, s.state, err)
		}
		r.log.Debug("step completed", zap.String("state", string(s.state)), zap.Duration("took", time.Since(started)))
	}

	r.log.Info("instance deployed", zap.String("instance_path", r.instance.InstancePath))
	return r.instance, nil
}

func (r *run) validate(raw domain.RawDeployRequest) error {
	req, err := r.p.validator.Validate(raw)
	if err != nil {
		return err
	}

	if r.p.opts.SecretStorage == config.SecretBcrypt {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.RconSecret), bcrypt.DefaultCost)
		if err != nil {
			verr := &domain.ValidationError{}
			verr.Add("rconSecret", "RCON Password cannot be hashed: "+err.Error())
			return verr
		}
		r.secretHash = string(hash)
	}

	r.req = req
	r.layout = script.NewLayout(req.BasePath, req.Name)
	r.log = r.log.With(zap.String("base_path", req.BasePath))
	return nil
}

func (r *run) checkExisting(ctx context.Context) error {
	existing, err := r.p.store.GetInstanceByName(r.req.Name)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCatalog, err)
	}
	if existing != nil {
		return fmt.Errorf("%w: server instance with name '%s' already exists in the database", domain.ErrNameConflict, r.req.Name)
	}
	if r.layout.SharesInstaller() {
		return fmt.Errorf("%w: instance directory %s is the shared steamcmd directory", domain.ErrNameConflict, r.layout.InstanceDir)
	}

	others, err := r.p.store.ListInstances()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCatalog, err)
	}
	for _, w := range portWarnings(others, r.req) {
		r.log.Warn("port collision", zap.String("detail", w))
		r.emit(ctx, StateCheckingExisting, "Warning: "+w, nil)
	}
	return nil
}

func (r *run) ensureBasePath(ctx context.Context) error {
	r.emit(ctx, StateEnsuringBasePath, "Preparing "+r.layout.BasePath, nil)
	return r.mkdirAll(r.layout.BasePath)
}

func (r *run) ensureInstaller(ctx context.Context) error {
	if info, err := os.Stat(r.layout.SteamCMDExe); err == nil && !info.IsDir() {
		r.emit(ctx, StateEnsuringInstaller, "SteamCMD found.", nil)
		return nil
	}

	r.emit(ctx, StateEnsuringInstaller, "SteamCMD not found, attempting to download...", nil)
	if err := r.mkdirAll(r.layout.SteamCMDDir); err != nil {
		return err
	}

	fetch, err := downloadCommand(r.req.Downloader, r.p.opts.SteamCMDURL)
	if err != nil {
		return err
	}
	extract := shell.Command{Name: validate.ArchiveTool, Args: []string{"xzvf", "-"}}

	r.emit(ctx, StateEnsuringInstaller, fmt.Sprintf("Using %s to download SteamCMD...", r.req.Downloader), nil)
	res, err := r.p.exec.Pipe(ctx, r.layout.SteamCMDDir, fetch, extract)
	if err != nil {
		return commandError(domain.ErrDownload, err)
	}
	if !res.OK() {
		return fmt.Errorf("%w: %s | tar exited with status %d: %s",
			domain.ErrDownload, r.req.Downloader, res.ExitCode, tail(res.Stderr))
	}
	if _, err := os.Stat(r.layout.SteamCMDExe); err != nil {
		return fmt.Errorf("%w: %s missing after extraction", domain.ErrDownload, r.layout.SteamCMDExe)
	}

	r.emit(ctx, StateEnsuringInstaller, "SteamCMD downloaded and extracted.", nil)
	return nil
}

// downloadCommand streams the installer archive to stdout. The URL comes
// from configuration, never from a request.
func downloadCommand(downloader, url string) (shell.Command, error) {
	switch downloader {
	case "wget":
		return shell.Command{Name: "wget", Args: []string{"-q", "-O", "-", url}}, nil
	case "curl":
		return shell.Command{Name: "curl", Args: []string{"-sqL", url}}, nil
	default:
		return shell.Command{}, fmt.Errorf("%w: no downloader (wget or curl) available", domain.ErrDependencyMissing)
	}
}

func (r *run) writeUpdateScript(ctx context.Context) error {
	if err := r.writeFile(r.layout.UpdateScript, script.UpdateScript(r.req.Name), 0644); err != nil {
		return err
	}
	r.emit(ctx, StateWritingUpdateScript, "Created SteamCMD update script: "+r.layout.UpdateScript, nil)
	return nil
}

func (r *run) writeStartScript(ctx context.Context) error {
	content := script.StartScript(r.layout, script.LaunchParams{
		GamePort:   r.req.GamePort,
		QueryPort:  r.req.QueryPort,
		MaxPlayers: r.req.MaxPlayers,
	})
	if err := r.writeFile(r.layout.StartScript, content, 0755); err != nil {
		return err
	}
	r.emit(ctx, StateWritingStartScript, "Created start script: "+r.layout.StartScript, nil)
	return nil
}

func (r *run) writeServerConfig(ctx context.Context) error {
	if err := r.writeFile(r.layout.ServerConfig, script.ServerConfig(r.req.GamePort, r.req.QueryPort), 0644); err != nil {
		return err
	}
	r.emit(ctx, StateWritingServerConfig, "Created server config: "+r.layout.ServerConfig, nil)
	return nil
}

func (r *run) writeRconConfig(ctx context.Context) error {
	if err := r.writeFile(r.layout.RconConfig, script.RconConfig(r.req.RconSecret), 0600); err != nil {
		return err
	}
	r.emit(ctx, StateWritingRconConfig, "Created RCON config: "+r.layout.RconConfig, nil)
	return nil
}

func (r *run) launchSession(ctx context.Context) error {
	r.emit(ctx, StateLaunchingSession, fmt.Sprintf("Attempting to start server '%s' in screen session...", r.req.Name), nil)

	res, err := r.p.exec.Run(ctx, shell.Command{
		Name: validate.SessionTool,
		Args: []string{"-dmS", r.req.Name, "bash", r.layout.StartScript},
	})
	if err != nil {
		return commandError(domain.ErrLaunch, err)
	}
	if !res.OK() {
		return fmt.Errorf("%w: failed to start screen session for %s (status %d): %s",
			domain.ErrLaunch, r.req.Name, res.ExitCode, tail(res.Stderr))
	}
	r.session = true
	return nil
}

func (r *run) commit(ctx context.Context) error {
	inst := &domain.ServerInstance{
		ID:           uuid.New().String(),
		Name:         r.req.Name,
		BasePath:     r.req.BasePath,
		InstancePath: r.layout.InstanceDir,
		GamePort:     r.req.GamePort,
		QueryPort:    r.req.QueryPort,
		MaxPlayers:   r.req.MaxPlayers,
		SessionName:  r.req.Name,
		RconSecret:   r.req.RconSecret,
		CreatedAt:    time.Now().UTC(),
	}
	if r.secretHash != "" {
		inst.RconSecret = r.secretHash
		inst.RconSecretHashed = true
	}

	if err := r.p.store.InsertInstance(inst); err != nil {
		if errors.Is(err, domain.ErrNameConflict) || errors.Is(err, domain.ErrCatalog) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrCatalog, err)
	}

	r.instance = inst
	r.emit(ctx, StateCommitting, fmt.Sprintf("Server instance '%s' saved to database.", inst.Name), nil)
	return nil
}

// fail applies the cleanup policy and builds the StepError for state.
func (r *run) fail(ctx context.Context, state State, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	stepErr := &StepError{State: state, Err: err}

	r.log.Error("deployment step failed", zap.String("state", string(state)), zap.Error(err))

	if r.p.opts.Cleanup == config.CleanupClean {
		stepErr.Leftovers, stepErr.SessionRunning = r.cleanup()
	} else {
		stepErr.Leftovers = append([]string(nil), r.created...)
		stepErr.SessionRunning = r.session
	}
	return stepErr
}

// cleanup removes what this run created, newest first, and stops the
// session if it was launched. It returns whatever could not be removed.
func (r *run) cleanup() ([]string, bool) {
	running := false
	if r.session {
		if err := r.p.quitSession(context.Background(), r.req.Name); err != nil {
			r.log.Warn("could not stop screen session", zap.Error(err))
			running = true
		}
	}

	var left []string
	for i := len(r.created) - 1; i >= 0; i-- {
		path := r.created[i]
		if err := os.RemoveAll(path); err != nil {
			r.log.Warn("cleanup failed", zap.String("path", path), zap.Error(err))
			left = append(left, path)
		}
	}
	return left, running
}

// mkdirAll creates dir and records the top-most directory it had to create.
func (r *run) mkdirAll(dir string) error {
	top := firstMissing(dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrFilesystem, err)
	}
	if top != "" {
		r.created = append(r.created, top)
	}
	return nil
}

func (r *run) writeFile(path, content string, mode os.FileMode) error {
	if err := r.mkdirAll(filepath.Dir(path)); err != nil {
		return err
	}
	_, statErr := os.Stat(path)
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrFilesystem, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrFilesystem, err)
	}
	if os.IsNotExist(statErr) {
		r.created = append(r.created, path)
	}
	return nil
}

func (r *run) emit(ctx context.Context, state State, msg string, err error) {
	if r.progress == nil {
		return
	}
	ev := domain.ProgressEvent{
		RequestID: r.requestID,
		State:     string(state),
		Message:   msg,
		Progress:  progressOf(state),
	}
	if r.req != nil {
		ev.Instance = r.req.Name
	}
	if err != nil {
		ev.Error = err.Error()
	}
	select {
	case r.progress <- ev:
	case <-ctx.Done():
	}
}

func firstMissing(dir string) string {
	missing := ""
	for d := filepath.Clean(dir); ; {
		if _, err := os.Stat(d); err == nil {
			break
		}
		missing = d
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}
	return missing
}

func commandError(kind error, err error) error {
	switch {
	case errors.Is(err, shell.ErrTimeout):
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	case errors.Is(err, shell.ErrNotFound):
		return fmt.Errorf("%w: %w: %v", kind, domain.ErrDependencyMissing, err)
	default:
		return fmt.Errorf("%w: %v", kind, err)
	}
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	const max = 512
	if len(s) > max {
		return "..." + s[len(s)-max:]
	}
	return s
}
