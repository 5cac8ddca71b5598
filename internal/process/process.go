package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Status represents the current state of a process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusExited   Status = "exited"
	StatusFailed   Status = "failed"
)

// outputBufferSize is the buffer size for capturing subprocess stderr.
const outputBufferSize = 4096

// ErrAlreadyStarted is returned when Start is called twice.
var ErrAlreadyStarted = errors.New("process: already started")

// Config holds configuration for a child process.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format).
	// If nil, inherits from parent process.
	Env []string

	// MaxRuntime kills the process once it has run this long. 0 means
	// unbounded.
	MaxRuntime time.Duration

	// GracefulTimeout is how long to wait for graceful shutdown before SIGKILL.
	GracefulTimeout time.Duration

	// OnExit is called once the process has exited, with the wait error.
	OnExit func(err error)
}

// Logger defines the logging interface for the process.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Process is a single run of a child process. It cannot be restarted;
// create a new Process instead.
type Process struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	startTime     time.Time
	lastError     error
	stopRequested bool
	cancel        context.CancelFunc

	stdout    *os.File
	closeOnce sync.Once

	bytesRead atomic.Int64
	reads     atomic.Int64

	done chan struct{}
}

// New creates a process with the given configuration. Nothing runs until
// Start.
func New(cfg Config) *Process {
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = 2 * time.Second
	}

	return &Process{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
		done:   make(chan struct{}),
	}
}

// SetLogger sets the logger for the process.
func (p *Process) SetLogger(logger Logger) {
	p.logger = logger
}

// Start launches the child. Stdout is connected to a pipe read through
// Stdout; the write end is closed in the parent so readers see EOF once the
// child and its descendants exit.
func (p *Process) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.status != StatusStopped || p.cmd != nil {
		p.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, p.config.Name)
	}
	p.status = StatusStarting
	p.mu.Unlock()

	if err := p.startProcess(ctx); err != nil {
		p.mu.Lock()
		p.status = StatusFailed
		p.lastError = err
		p.mu.Unlock()
		close(p.done)
		return err
	}

	go p.monitor()
	return nil
}

func (p *Process) startProcess(ctx context.Context) error {
	p.logger.Info("starting process",
		"name", p.config.Name,
		"binary", p.config.Binary,
	)

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if p.config.MaxRuntime > 0 {
		runCtx, cancel = context.WithTimeout(ctx, p.config.MaxRuntime)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}

	cmd := exec.CommandContext(runCtx, p.config.Binary, p.config.Args...) //nolint:gosec // binary comes from config

	// Create a new process group so we can signal all children on shutdown
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	if p.config.Env != nil {
		cmd.Env = append(os.Environ(), p.config.Env...)
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		cancel()
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	cmd.Stdout = stdoutW

	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		stdoutR.Close()
		stdoutW.Close()
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		stdoutR.Close()
		stdoutW.Close()
		return fmt.Errorf("starting %s: %w", p.config.Name, err)
	}
	stdoutW.Close()

	p.mu.Lock()
	p.cmd = cmd
	p.cancel = cancel
	p.stdout = stdoutR
	p.status = StatusRunning
	p.startTime = time.Now()
	p.mu.Unlock()

	go p.captureOutput(stderr)

	p.logger.Info("process started",
		"name", p.config.Name,
		"pid", cmd.Process.Pid,
	)
	return nil
}

// captureOutput reads stderr and logs each chunk.
func (p *Process) captureOutput(r io.Reader) {
	buf := make([]byte, outputBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			p.logger.Debug("process output",
				"name", p.config.Name,
				"output", string(buf[:n]),
			)
		}
		if err != nil {
			return
		}
	}
}

// monitor waits for the child to exit and records the outcome.
func (p *Process) monitor() {
	defer close(p.done)

	p.mu.RLock()
	cmd := p.cmd
	cancel := p.cancel
	p.mu.RUnlock()

	err := cmd.Wait()
	cancel()

	p.mu.Lock()
	stopRequested := p.stopRequested
	switch {
	case stopRequested:
		p.status = StatusStopped
	case err != nil:
		p.status = StatusFailed
		p.lastError = err
	default:
		p.status = StatusExited
	}
	p.mu.Unlock()

	if stopRequested {
		p.logger.Info("process stopped as requested", "name", p.config.Name)
	} else {
		p.logger.Info("process exited",
			"name", p.config.Name,
			"error", err,
			"bytes", p.bytesRead.Load(),
		)
	}

	if p.config.OnExit != nil {
		p.config.OnExit(err)
	}
}

// Stop terminates the process group and closes the stdout pipe. It sends
// SIGTERM, waits GracefulTimeout, then sends SIGKILL. Safe to call more
// than once and after the process has exited.
func (p *Process) Stop() error {
	defer p.closeStdout()

	p.mu.Lock()
	if p.status != StatusRunning {
		p.mu.Unlock()
		return nil
	}
	p.stopRequested = true
	cmd := p.cmd
	p.mu.Unlock()

	pid := cmd.Process.Pid
	p.logger.Info("stopping process", "name", p.config.Name, "pid", pid)

	// Negative PID signals the whole group created via Setpgid
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			p.logger.Warn("failed to send SIGTERM to process group", "name", p.config.Name, "error", err)
		}
	}

	select {
	case <-p.done:
		p.logger.Info("process stopped gracefully", "name", p.config.Name)
		return nil
	case <-time.After(p.config.GracefulTimeout):
		p.logger.Warn("graceful shutdown timeout, sending SIGKILL",
			"name", p.config.Name,
			"timeout", p.config.GracefulTimeout,
		)
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		if !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("killing process group %s: %w", p.config.Name, err)
		}
	}

	<-p.done
	p.logger.Info("process killed", "name", p.config.Name)
	return nil
}

func (p *Process) closeStdout() {
	p.closeOnce.Do(func() {
		p.mu.RLock()
		f := p.stdout
		p.mu.RUnlock()
		if f != nil {
			f.Close()
		}
	})
}

// Stdout returns a reader over the child's standard output. Reads after
// Stop fail with os.ErrClosed.
func (p *Process) Stdout() io.Reader {
	return stdoutReader{p: p}
}

type stdoutReader struct{ p *Process }

func (r stdoutReader) Read(b []byte) (int, error) {
	r.p.mu.RLock()
	f := r.p.stdout
	r.p.mu.RUnlock()
	if f == nil {
		return 0, io.EOF
	}

	n, err := f.Read(b)
	if n > 0 {
		r.p.bytesRead.Add(int64(n))
		r.p.reads.Add(1)
	}
	return n, err
}

// Done is closed once the process has exited (or failed to start).
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Status returns the current status of the process.
func (p *Process) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// IsRunning returns true if the process is currently running.
func (p *Process) IsRunning() bool {
	return p.Status() == StatusRunning
}

// LastError returns the error the process exited with, if any.
func (p *Process) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastError
}

// Uptime returns how long the process has been running.
// Returns 0 if the process is not running.
func (p *Process) Uptime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.status != StatusRunning {
		return 0
	}
	return time.Since(p.startTime)
}

// PID returns the process ID, or 0 if never started.
func (p *Process) PID() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cmd != nil && p.cmd.Process != nil {
		return p.cmd.Process.Pid
	}
	return 0
}

// Stats holds statistics about a process.
type Stats struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	PID       int           `json:"pid,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	BytesRead int64         `json:"bytes_read"`
	Reads     int64         `json:"reads"`
	LastError string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the process.
func (p *Process) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := Stats{
		Name:      p.config.Name,
		Status:    p.status,
		BytesRead: p.bytesRead.Load(),
		Reads:     p.reads.Load(),
	}
	if p.cmd != nil && p.cmd.Process != nil {
		stats.PID = p.cmd.Process.Pid
	}
	if p.status == StatusRunning {
		stats.Uptime = time.Since(p.startTime)
	}
	if p.lastError != nil {
		stats.LastError = p.lastError.Error()
	}
	return stats
}
