package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-alexa/internal/alexa"
	"github.com/nerrad567/gray-logic-alexa/internal/device"
	"github.com/nerrad567/gray-logic-alexa/internal/pointstore"
)

var (
	camID   = alexa.EndpointID(device.FamilyCamera, "cam1")
	plugID  = alexa.EndpointID(device.FamilyPlug, "plug1")
	bareCam = alexa.EndpointID(device.FamilyCamera, "cam2")
)

func newTestManager(t *testing.T, snapshotURL string, script string) *Manager {
	t.Helper()

	cat := &device.Catalog{Devices: []device.Descriptor{
		{Family: device.FamilyCamera, SourceID: "cam1", Name: "Door", Camera: &device.CameraConfig{
			StreamURL:   "rtsp://cam/stream",
			SnapshotURL: snapshotURL,
		}},
		{Family: device.FamilyCamera, SourceID: "cam2", Name: "Garden", Camera: &device.CameraConfig{
			StreamURL: "rtsp://cam2/stream",
		}},
		{Family: device.FamilyPlug, SourceID: "plug1", Name: "Fan"},
	}}
	reg := device.NewRegistry()
	if err := reg.Populate(cat, pointstore.NewMemoryStore(nil)); err != nil {
		t.Fatalf("Populate() error = %v", err)
	}

	m := NewManager(Config{
		MaxDuration:     5 * time.Second,
		IdleTimeout:     2 * time.Second,
		GracefulTimeout: 100 * time.Millisecond,
		ChunkSize:       4,
	}, reg)
	m.SetCommand(func(string) (string, []string) {
		return "/bin/sh", []string{"-c", script}
	})
	t.Cleanup(func() { m.Close() })
	return m
}

func streamRequest(m *Manager, endpointID string, ranged bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/camera/"+endpointID+"/stream", nil)
	if ranged {
		req.Header.Set("Range", "bytes=0-")
	}
	rec := httptest.NewRecorder()
	m.ServeStream(rec, req, endpointID)
	return rec
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestServeStream_NotCamera(t *testing.T) {
	m := newTestManager(t, "", "sleep 5")

	for _, id := range []string{"unknown", plugID} {
		if rec := streamRequest(m, id, false); rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want %d", id, rec.Code, http.StatusNotFound)
		}
	}
}

func TestServeStream_RangedWithoutSession(t *testing.T) {
	m := newTestManager(t, "", "sleep 5")

	rec := streamRequest(m, camID, true)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestServeStream_StartThenAttach(t *testing.T) {
	m := newTestManager(t, "", "printf 'fragmented-mp4'; sleep 0.3")

	rec := streamRequest(m, camID, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("unranged status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != contentTypeMP4 {
		t.Errorf("Content-Type = %q, want %q", ct, contentTypeMP4)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("unranged body length = %d, want 0", rec.Body.Len())
	}
	if m.Active() != 1 {
		t.Fatalf("Active() = %d, want 1", m.Active())
	}

	rec = streamRequest(m, camID, true)
	if rec.Code != http.StatusPartialContent {
		t.Fatalf("ranged status = %d, want %d", rec.Code, http.StatusPartialContent)
	}
	if got := rec.Body.String(); got != "fragmented-mp4" {
		t.Errorf("body = %q, want %q", got, "fragmented-mp4")
	}
	if m.Active() != 0 {
		t.Errorf("Active() after delivery = %d, want 0", m.Active())
	}
}

func TestServeStream_SecondAttachRejected(t *testing.T) {
	m := newTestManager(t, "", "sleep 5")

	streamRequest(m, camID, false)
	s := m.attach(camID)
	if s == nil {
		t.Fatal("attach() = nil, want session")
	}

	rec := streamRequest(m, camID, true)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	s.proc.Stop()
}

func TestStart_SupersedesPreviousSession(t *testing.T) {
	m := newTestManager(t, "", "sleep 5")

	if err := m.Start(camID, "rtsp://cam/stream"); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	m.mu.Lock()
	first := m.sessions[camID]
	m.mu.Unlock()

	if err := m.Start(camID, "rtsp://cam/stream"); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	select {
	case <-first.proc.Done():
	case <-time.After(time.Second):
		t.Fatal("superseded process still running")
	}
	if m.Active() != 1 {
		t.Errorf("Active() = %d, want 1", m.Active())
	}

	m.mu.Lock()
	current := m.sessions[camID]
	m.mu.Unlock()
	if current == first {
		t.Error("session was not replaced")
	}
	if !current.proc.IsRunning() {
		t.Error("replacement process is not running")
	}
}

func TestStart_SupersedeReleasesLock(t *testing.T) {
	m := newTestManager(t, "", "trap '' TERM; sleep 5")
	m.cfg.GracefulTimeout = time.Second

	if err := m.Start(camID, "rtsp://cam/stream"); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- m.Start(camID, "rtsp://cam/stream") }()
	// Let the second Start reach the stop of the first transcoder, which
	// ignores SIGTERM and holds out for the full graceful timeout.
	time.Sleep(200 * time.Millisecond)

	begin := time.Now()
	m.Sessions()
	if elapsed := time.Since(begin); elapsed > 500*time.Millisecond {
		t.Errorf("Sessions() blocked for %v while a stream was superseded", elapsed)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("second Start() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("second Start() did not return")
	}
	if m.Active() != 1 {
		t.Errorf("Active() = %d, want 1", m.Active())
	}
}

func TestStart_IndependentEndpoints(t *testing.T) {
	m := newTestManager(t, "", "sleep 5")

	if err := m.Start(camID, "a"); err != nil {
		t.Fatalf("Start(cam1) error = %v", err)
	}
	if err := m.Start(bareCam, "b"); err != nil {
		t.Fatalf("Start(cam2) error = %v", err)
	}
	if m.Active() != 2 {
		t.Errorf("Active() = %d, want 2", m.Active())
	}
	if n := len(m.Sessions()); n != 2 {
		t.Errorf("len(Sessions()) = %d, want 2", n)
	}
}

func TestStart_IdleTimeout(t *testing.T) {
	m := newTestManager(t, "", "sleep 5")
	m.cfg.IdleTimeout = 50 * time.Millisecond

	if err := m.Start(camID, "rtsp://cam/stream"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "idle teardown", func() bool { return m.Active() == 0 })

	rec := streamRequest(m, camID, true)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status after idle timeout = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestStart_ProcessExitClearsSession(t *testing.T) {
	m := newTestManager(t, "", "exit 0")

	if err := m.Start(camID, "rtsp://cam/stream"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "exit teardown", func() bool { return m.Active() == 0 })
}

func TestStart_StartFailure(t *testing.T) {
	m := newTestManager(t, "", "")
	m.SetCommand(func(string) (string, []string) {
		return "/nonexistent/ffmpeg", nil
	})

	if err := m.Start(camID, "rtsp://cam/stream"); err == nil {
		t.Fatal("Start() expected error for missing binary")
	}
	if m.Active() != 0 {
		t.Errorf("Active() = %d, want 0", m.Active())
	}

	rec := streamRequest(m, camID, false)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestClose(t *testing.T) {
	m := newTestManager(t, "", "sleep 5")

	if err := m.Start(camID, "rtsp://cam/stream"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	m.mu.Lock()
	s := m.sessions[camID]
	m.mu.Unlock()

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if m.Active() != 0 {
		t.Errorf("Active() = %d, want 0", m.Active())
	}
	select {
	case <-s.proc.Done():
	case <-time.After(time.Second):
		t.Fatal("process still running after Close")
	}
	if err := m.Start(camID, "x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Start() after Close error = %v, want ErrClosed", err)
	}
}

func TestFFmpegCommand(t *testing.T) {
	m := NewManager(Config{FFmpegPath: "/usr/bin/ffmpeg", MaxDuration: 30 * time.Second}, nil)

	bin, args := m.ffmpegCommand("rtsp://cam/stream")
	if bin != "/usr/bin/ffmpeg" {
		t.Errorf("binary = %q, want /usr/bin/ffmpeg", bin)
	}

	want := map[string]string{"-i": "rtsp://cam/stream", "-t": "30", "-f": "mp4"}
	for flag, value := range want {
		found := false
		for i := 0; i < len(args)-1; i++ {
			if args[i] == flag && args[i+1] == value {
				found = true
			}
		}
		if !found {
			t.Errorf("args %v missing %s %s", args, flag, value)
		}
	}
	if args[len(args)-1] != "pipe:1" {
		t.Errorf("last arg = %q, want pipe:1", args[len(args)-1])
	}
}

func TestSnapshot(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/snap.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		io.WriteString(w, "png-bytes")
	}))
	defer upstream.Close()

	m := newTestManager(t, upstream.URL+"/snap.jpg", "sleep 5")

	rec := httptest.NewRecorder()
	if err := m.Snapshot(context.Background(), rec, camID); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if rec.Body.String() != "png-bytes" {
		t.Errorf("body = %q, want png-bytes", rec.Body.String())
	}
}

func TestSnapshot_Errors(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	m := newTestManager(t, upstream.URL+"/snap.jpg", "sleep 5")

	tests := []struct {
		name       string
		endpointID string
		wantErr    error
	}{
		{name: "unknown endpoint", endpointID: "nope", wantErr: ErrNotCamera},
		{name: "not a camera", endpointID: plugID, wantErr: ErrNotCamera},
		{name: "no snapshot source", endpointID: bareCam, wantErr: ErrNoSnapshot},
		{name: "upstream failure", endpointID: camID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Snapshot(context.Background(), httptest.NewRecorder(), tt.endpointID)
			if err == nil {
				t.Fatal("Snapshot() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Snapshot() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
