package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
	"github.com/nerrad567/gray-logic-alexa/internal/device"
	"github.com/nerrad567/gray-logic-alexa/internal/metrics"
	"github.com/nerrad567/gray-logic-alexa/internal/process"
)

// End reasons recorded in metrics.
const (
	reasonSuperseded = "superseded"
	reasonIdle       = "idle_timeout"
	reasonExited     = "exited"
	reasonDelivered  = "delivered"
	reasonShutdown   = "shutdown"
)

const (
	contentTypeMP4   = "video/mp4"
	defaultChunkSize = 64 * 1024
)

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Devices resolves endpoint IDs to adapters.
type Devices interface {
	Get(endpointID string) (device.Adapter, error)
}

// CommandFunc builds the transcoder command line for an upstream URL.
type CommandFunc func(source string) (binary string, args []string)

// Config holds stream settings.
type Config struct {
	FFmpegPath      string
	MaxDuration     time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
	ChunkSize       int
}

type session struct {
	endpointID string
	proc       *process.Process
	timer      *time.Timer
	attached   bool
	started    time.Time
}

// Manager owns the per-endpoint stream sessions.
type Manager struct {
	cfg     Config
	devices Devices
	client  *http.Client
	command CommandFunc
	logger  Logger

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

// NewManager creates a stream manager.
func NewManager(cfg Config, devices Devices) *Manager {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = 60 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 10 * time.Second
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}

	m := &Manager{
		cfg:      cfg,
		devices:  devices,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   noopLogger{},
		sessions: make(map[string]*session),
	}
	m.command = m.ffmpegCommand
	return m
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetCommand replaces the transcoder command builder.
func (m *Manager) SetCommand(fn CommandFunc) {
	m.command = fn
}

// SetHTTPClient replaces the client used to fetch snapshots.
func (m *Manager) SetHTTPClient(c *http.Client) {
	m.client = c
}

// ffmpegCommand remuxes the camera's RTSP stream into fragmented MP4 on
// stdout, bounded to MaxDuration.
func (m *Manager) ffmpegCommand(source string) (string, []string) {
	return m.cfg.FFmpegPath, []string{
		"-hide_banner",
		"-loglevel", "error",
		"-rtsp_transport", "tcp",
		"-i", source,
		"-t", fmt.Sprintf("%d", int(m.cfg.MaxDuration.Seconds())),
		"-c:v", "copy",
		"-c:a", "aac",
		"-f", "mp4",
		"-movflags", "frag_keyframe+empty_moov+default_base_moof",
		"pipe:1",
	}
}

func (m *Manager) camera(endpointID string) (device.CameraStreamer, error) {
	a, err := m.devices.Get(endpointID)
	if err != nil {
		return nil, ErrNotCamera
	}
	cam, ok := device.As[device.CameraStreamer](a, alexa.NamespaceCameraStreamController)
	if !ok {
		return nil, ErrNotCamera
	}
	return cam, nil
}

// ServeStream handles GET /camera/{endpointID}/stream.
func (m *Manager) ServeStream(w http.ResponseWriter, r *http.Request, endpointID string) {
	cam, err := m.camera(endpointID)
	if err != nil {
		http.Error(w, "camera not found", http.StatusNotFound)
		return
	}

	if r.Header.Get("Range") == "" {
		if err := m.Start(endpointID, cam.StreamSource()); err != nil {
			m.logger.Error("starting stream failed", "endpoint_id", endpointID, "error", err)
			http.Error(w, "stream unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", contentTypeMP4)
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		return
	}

	s := m.attach(endpointID)
	if s == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	m.deliver(w, r, s)
}

// Start supersedes any session for endpointID and spawns a new
// transcoder reading source.
func (m *Manager) Start(endpointID, source string) error {
	binary, args := m.command(source)

	// A superseded transcoder is stopped with the lock released; Stop waits
	// up to GracefulTimeout for it to exit.
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return ErrClosed
		}
		old := m.sessions[endpointID]
		if old == nil {
			break
		}
		m.removeLocked(old, reasonSuperseded)
		old.timer.Stop()
		m.mu.Unlock()

		old.proc.Stop()
		m.logger.Info("stream superseded", "endpoint_id", endpointID, "pid", old.proc.PID())
	}
	defer m.mu.Unlock()

	proc := process.New(process.Config{
		Name:            "transcode-" + endpointID,
		Binary:          binary,
		Args:            args,
		MaxRuntime:      m.cfg.MaxDuration,
		GracefulTimeout: m.cfg.GracefulTimeout,
	})
	proc.SetLogger(m.logger)
	// The transcoder outlives the request that started it; its lifetime is
	// bounded by MaxRuntime and the idle timer instead.
	if err := proc.Start(context.Background()); err != nil {
		return fmt.Errorf("starting transcoder: %w", err)
	}

	s := &session{endpointID: endpointID, proc: proc, started: time.Now()}
	s.timer = time.AfterFunc(m.cfg.IdleTimeout, func() { m.expire(s) })
	m.sessions[endpointID] = s
	metrics.ActiveStreams.Inc()

	go m.watch(s)

	m.logger.Info("stream started", "endpoint_id", endpointID, "pid", proc.PID())
	return nil
}

// attach claims the running, unattached session for endpointID.
func (m *Manager) attach(endpointID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[endpointID]
	if s == nil || s.attached || !s.proc.IsRunning() {
		return nil
	}
	s.attached = true
	s.timer.Stop()
	return s
}

// deliver copies transcoder output to the client until the process ends
// or the client goes away.
func (m *Manager) deliver(w http.ResponseWriter, r *http.Request, s *session) {
	defer func() {
		m.mu.Lock()
		m.removeLocked(s, reasonDelivered)
		m.mu.Unlock()
		s.proc.Stop()
	}()

	w.Header().Set("Content-Type", contentTypeMP4)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusPartialContent)

	// Closing stdout unblocks the copy below when the client disconnects.
	stop := context.AfterFunc(r.Context(), func() { s.proc.Stop() })
	defer stop()

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, m.cfg.ChunkSize)
	out := s.proc.Stdout()
	for {
		n, err := out.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				m.logger.Debug("stream client gone", "endpoint_id", s.endpointID, "error", werr)
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				m.logger.Debug("stream ended", "endpoint_id", s.endpointID, "error", err)
			}
			return
		}
	}
}

// watch tears the session down when the transcoder exits. An attached
// session is left to deliver, which drains the pipe first.
func (m *Manager) watch(s *session) {
	<-s.proc.Done()

	m.mu.Lock()
	attached := s.attached
	m.removeLocked(s, reasonExited)
	m.mu.Unlock()

	s.timer.Stop()
	if !attached {
		s.proc.Stop()
	}
}

func (m *Manager) expire(s *session) {
	m.mu.Lock()
	if s.attached || !m.removeLocked(s, reasonIdle) {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.logger.Info("stream idle, no client attached", "endpoint_id", s.endpointID)
	s.proc.Stop()
}

// removeLocked drops s if it is still the current session of its endpoint.
func (m *Manager) removeLocked(s *session, reason string) bool {
	if m.sessions[s.endpointID] != s {
		return false
	}
	delete(m.sessions, s.endpointID)
	metrics.ActiveStreams.Dec()
	metrics.StreamSessions.WithLabelValues(reason).Inc()
	return true
}

// Snapshot fetches the camera's still image and copies it to w.
//
// Errors:
//   - ErrNotCamera: unknown endpoint or not a camera
//   - ErrNoSnapshot: the camera has no snapshot source
//   - any other error: the upstream fetch failed
func (m *Manager) Snapshot(ctx context.Context, w http.ResponseWriter, endpointID string) error {
	cam, err := m.camera(endpointID)
	if err != nil {
		return err
	}
	src := cam.SnapshotSource()
	if src == "" {
		return ErrNoSnapshot
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return fmt.Errorf("building snapshot request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetching snapshot: upstream status %d", resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "image/jpeg"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resp.Body); err != nil {
		m.logger.Debug("snapshot copy interrupted", "endpoint_id", endpointID, "error", err)
	}
	return nil
}

// Active returns the number of live sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// SessionStats describes one live session.
type SessionStats struct {
	EndpointID string        `json:"endpoint_id"`
	Attached   bool          `json:"attached"`
	Process    process.Stats `json:"process"`
}

// Sessions returns stats for every live session.
func (m *Manager) Sessions() []SessionStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SessionStats, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, SessionStats{
			EndpointID: s.endpointID,
			Attached:   s.attached,
			Process:    s.proc.Stats(),
		})
	}
	return out
}

// Close stops every session. Later Start calls fail with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	for _, s := range sessions {
		m.removeLocked(s, reasonShutdown)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.timer.Stop()
		s.proc.Stop()
	}
	return nil
}
