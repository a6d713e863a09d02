package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("executable not found")
	ErrTimeout  = errors.New("command timed out")
)

// Command describes one external process. Arguments are passed to the
// process as-is; nothing is interpreted by a shell.
type Command struct {
	Name string
	Args []string
	Dir  string
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (r *Result) OK() bool {
	return r != nil && r.ExitCode == 0
}

// Executor runs external commands. A non-zero exit status is reported in the
// Result and is never an error by itself.
type Executor interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, cmd Command) (*Result, error)
	// Pipe runs from and to in dir with from's stdout connected to to's stdin.
	Pipe(ctx context.Context, dir string, from, to Command) (*Result, error)
}

type OSExecutor struct {
	// Timeout bounds every call. Zero means no bound beyond the caller's context.
	Timeout time.Duration
}

func NewOSExecutor(timeout time.Duration) *OSExecutor {
	return &OSExecutor{Timeout: timeout}
}

const waitDelay = 2 * time.Second

func (e *OSExecutor) LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return path, nil
}

func (e *OSExecutor) Run(ctx context.Context, c Command) (*Result, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	cmd, err := e.build(ctx, c)
	if err != nil {
		return nil, err
	}
	cmd.Dir = c.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	code, err := exitStatus(ctx, cmd, runErr)
	if err != nil {
		return res, fmt.Errorf("%s: %w", c, err)
	}
	res.ExitCode = code
	return res, nil
}

func (e *OSExecutor) Pipe(ctx context.Context, dir string, from, to Command) (*Result, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	producer, err := e.build(ctx, from)
	if err != nil {
		return nil, err
	}
	consumer, err := e.build(ctx, to)
	if err != nil {
		return nil, err
	}
	producer.Dir = dir
	consumer.Dir = dir

	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	var stdout, producerErr, consumerErr bytes.Buffer
	producer.Stdout = w
	producer.Stderr = &producerErr
	consumer.Stdin = r
	consumer.Stdout = &stdout
	consumer.Stderr = &consumerErr

	if err := consumer.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return nil, fmt.Errorf("%s: %w", to, err)
	}
	if err := producer.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		_ = consumer.Wait()
		return nil, fmt.Errorf("%s: %w", from, err)
	}
	_ = r.Close()
	_ = w.Close()

	producerWait := producer.Wait()
	consumerWait := consumer.Wait()

	res := &Result{
		Stdout: stdout.String(),
		Stderr: producerErr.String() + consumerErr.String(),
	}

	producerCode, err := exitStatus(ctx, producer, producerWait)
	if err != nil {
		return res, fmt.Errorf("%s: %w", from, err)
	}
	consumerCode, err := exitStatus(ctx, consumer, consumerWait)
	if err != nil {
		return res, fmt.Errorf("%s: %w", to, err)
	}

	// Like `set -o pipefail`: the last failing stage decides.
	res.ExitCode = consumerCode
	if res.ExitCode == 0 {
		res.ExitCode = producerCode
	}
	return res, nil
}

func (e *OSExecutor) build(ctx context.Context, c Command) (*exec.Cmd, error) {
	path, err := e.LookPath(c.Name)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, path, c.Args...)
	cmd.WaitDelay = waitDelay
	prepareCommand(cmd)
	return cmd, nil
}

func (e *OSExecutor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.Timeout)
}

func exitStatus(ctx context.Context, cmd *exec.Cmd, err error) (int, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return -1, ErrTimeout
		}
		return -1, ctxErr
	}
	if err == nil {
		return 0, nil
	}
	// A daemonizing child (screen -dm) may keep our output pipes open after
	// the command itself exited.
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode(), nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
