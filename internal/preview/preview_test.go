package preview

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"encmirror/internal/clock"
	"encmirror/internal/model"
)

type jobMap map[int64]model.Job

func (m jobMap) Job(id int64) (model.Job, bool) {
	job, ok := m[id]
	return job, ok
}

type fakeSource struct {
	closed   atomic.Bool
	inFlight atomic.Int32
	overlap  atomic.Bool
	delay    time.Duration
	fail     error

	// started is closed when a frame begins; the frame then blocks until
	// release is closed.
	started chan struct{}
	release chan struct{}
}

func (s *fakeSource) Frame(_ context.Context, pos float64) ([]byte, error) {
	if s.inFlight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.inFlight.Add(-1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.release != nil {
		close(s.started)
		<-s.release
		if s.closed.Load() {
			return nil, errors.New("source closed mid-frame")
		}
	}
	if s.fail != nil {
		return nil, s.fail
	}
	return []byte(fmt.Sprintf("frame@%g", pos)), nil
}

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	return nil
}

type fakeOpener struct {
	mu      sync.Mutex
	sources []*fakeSource
	calls   []int
	delay   time.Duration
}

func (o *fakeOpener) Open(_ context.Context, _ string, serviceID int) (FrameSource, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	src := &fakeSource{delay: o.delay}
	o.sources = append(o.sources, src)
	o.calls = append(o.calls, serviceID)
	return src, nil
}

func newTestManager(t *testing.T, jobs jobMap) (*Manager, *fakeOpener, *clock.Fake) {
	t.Helper()
	fake := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	opener := &fakeOpener{}
	mgr, err := NewManager(Options{Jobs: jobs, Opener: opener, TTL: time.Minute, Clock: fake})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr, opener, fake
}

func recording(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rec.ts")
	if err := os.WriteFile(path, []byte("ts"), 0o644); err != nil {
		t.Fatalf("write recording: %v", err)
	}
	return path
}

func TestCreateValidatesJob(t *testing.T) {
	path := recording(t)
	jobs := jobMap{
		1: {ID: 1, SrcPath: path, ServiceID: 1024},
		2: {ID: 2},
		3: {ID: 3, SrcPath: filepath.Join(t.TempDir(), "gone.ts"), ServiceID: 1},
		4: {ID: 4, SrcPath: path},
	}
	mgr, opener, _ := newTestManager(t, jobs)
	ctx := context.Background()

	cases := []struct {
		jobID int64
		hint  int
		want  error
	}{
		{99, 0, ErrJobNotFound},
		{2, 0, ErrNoSourcePath},
		{3, 0, ErrSourceMissing},
		{4, 0, ErrNoServiceID},
	}
	for _, tc := range cases {
		if _, err := mgr.Create(ctx, tc.jobID, tc.hint); !errors.Is(err, tc.want) {
			t.Fatalf("Create(%d) error = %v, want %v", tc.jobID, err, tc.want)
		}
	}

	info, err := mgr.Create(ctx, 4, 2048)
	if err != nil {
		t.Fatalf("Create with hint: %v", err)
	}
	if info.ServiceID != 2048 || info.JobID != 4 {
		t.Fatalf("info = %+v", info)
	}
	if len(info.ID) != 32 || strings.Contains(info.ID, "-") {
		t.Fatalf("session id %q should be a dashless uuid", info.ID)
	}
	if _, err := mgr.Create(ctx, 1, 2048); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := opener.calls; len(got) != 2 || got[1] != 1024 {
		t.Fatalf("job service id should win over hint, calls = %v", got)
	}
}

func TestSessionTTL(t *testing.T) {
	path := recording(t)
	mgr, opener, fake := newTestManager(t, jobMap{1: {ID: 1, SrcPath: path, ServiceID: 1}})
	ctx := context.Background()

	idle, err := mgr.Create(ctx, 1, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	fake.Advance(time.Minute + time.Millisecond)
	if _, ok := mgr.Get(idle.ID); ok {
		t.Fatal("idle session survived past its TTL")
	}
	mgr.evicting.Wait()
	if !opener.sources[0].closed.Load() {
		t.Fatal("expired session source was not closed")
	}

	touched, err := mgr.Create(ctx, 1, 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	fake.Advance(30 * time.Second)
	if _, err := mgr.Frame(ctx, touched.ID, 0.5); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	fake.Advance(time.Minute - time.Millisecond)
	if _, ok := mgr.Get(touched.ID); !ok {
		t.Fatal("touched session expired early")
	}
	fake.Advance(2 * time.Millisecond)
	if _, ok := mgr.Get(touched.ID); ok {
		t.Fatal("touched session outlived its refreshed TTL")
	}
}

func TestFrameValidation(t *testing.T) {
	path := recording(t)
	mgr, opener, _ := newTestManager(t, jobMap{1: {ID: 1, SrcPath: path, ServiceID: 1}})
	ctx := context.Background()
	info, _ := mgr.Create(ctx, 1, 0)

	for _, pos := range []float64{-0.1, 1.1} {
		if _, err := mgr.Frame(ctx, info.ID, pos); !errors.Is(err, ErrInvalidPosition) {
			t.Fatalf("Frame(%v) error = %v", pos, err)
		}
	}
	if _, err := mgr.Frame(ctx, "missing", 0); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("unknown session error = %v", err)
	}
	frame, err := mgr.Frame(ctx, info.ID, 1)
	if err != nil || string(frame) != "frame@1" {
		t.Fatalf("Frame = %q, %v", frame, err)
	}

	opener.sources[0].fail = errors.New("decoder exploded")
	if _, err := mgr.Frame(ctx, info.ID, 0); err == nil {
		t.Fatal("expected frame error")
	}
	if _, ok := mgr.Get(info.ID); !ok {
		t.Fatal("a frame error must not invalidate the session")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	path := recording(t)
	mgr, opener, _ := newTestManager(t, jobMap{1: {ID: 1, SrcPath: path, ServiceID: 1}})
	info, _ := mgr.Create(context.Background(), 1, 0)
	if !mgr.Remove(info.ID) {
		t.Fatal("first remove should report a session")
	}
	if mgr.Remove(info.ID) {
		t.Fatal("second remove should be a no-op")
	}
	if !opener.sources[0].closed.Load() {
		t.Fatal("removed session source not closed")
	}
	if mgr.Len() != 0 {
		t.Fatalf("len = %d", mgr.Len())
	}
}

func TestFramesSerializedPerSession(t *testing.T) {
	path := recording(t)
	mgr, opener, _ := newTestManager(t, jobMap{1: {ID: 1, SrcPath: path, ServiceID: 1}})
	opener.delay = 5 * time.Millisecond
	ctx := context.Background()
	a, _ := mgr.Create(ctx, 1, 0)
	b, _ := mgr.Create(ctx, 1, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		for _, id := range []string{a.ID, b.ID} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if _, err := mgr.Frame(ctx, id, 0); err != nil {
					t.Errorf("Frame: %v", err)
				}
			}(id)
		}
	}
	wg.Wait()
	for i, src := range opener.sources {
		if src.overlap.Load() {
			t.Fatalf("session %d rendered frames concurrently", i)
		}
	}
}

type frameResult struct {
	frame []byte
	err   error
}

// blockFrame starts a frame on id that stays in flight until src.release is
// closed.
func blockFrame(t *testing.T, mgr *Manager, src *fakeSource, id string) <-chan frameResult {
	t.Helper()
	src.started = make(chan struct{})
	src.release = make(chan struct{})
	out := make(chan frameResult, 1)
	go func() {
		frame, err := mgr.Frame(context.Background(), id, 0.5)
		out <- frameResult{frame, err}
	}()
	select {
	case <-src.started:
	case <-time.After(2 * time.Second):
		t.Fatal("frame never started")
	}
	return out
}

func TestEvictionWaitsForInFlightFrame(t *testing.T) {
	path := recording(t)
	mgr, opener, fake := newTestManager(t, jobMap{1: {ID: 1, SrcPath: path, ServiceID: 1}})
	ctx := context.Background()

	removed, _ := mgr.Create(ctx, 1, 0)
	src := opener.sources[0]
	frame := blockFrame(t, mgr, src, removed.ID)
	removeDone := make(chan bool, 1)
	go func() { removeDone <- mgr.Remove(removed.ID) }()

	select {
	case <-removeDone:
		t.Fatal("Remove returned while a frame was in flight")
	case <-time.After(20 * time.Millisecond):
	}
	if src.closed.Load() {
		t.Fatal("source closed under an in-flight frame")
	}
	close(src.release)
	if res := <-frame; res.err != nil || string(res.frame) != "frame@0.5" {
		t.Fatalf("in-flight frame = %q, %v", res.frame, res.err)
	}
	if !<-removeDone || !src.closed.Load() {
		t.Fatal("Remove should close the source once the frame finished")
	}

	expired, _ := mgr.Create(ctx, 1, 0)
	src = opener.sources[1]
	frame = blockFrame(t, mgr, src, expired.ID)
	fake.Advance(2 * time.Minute)
	if _, ok := mgr.Get(expired.ID); ok {
		t.Fatal("expired session still listed")
	}
	if src.closed.Load() {
		t.Fatal("sweep closed the source under an in-flight frame")
	}
	close(src.release)
	if res := <-frame; res.err != nil {
		t.Fatalf("in-flight frame failed: %v", res.err)
	}
	mgr.evicting.Wait()
	if !src.closed.Load() {
		t.Fatal("expired source not closed after its frame finished")
	}
}

func TestCloseReleasesAll(t *testing.T) {
	path := recording(t)
	mgr, opener, _ := newTestManager(t, jobMap{1: {ID: 1, SrcPath: path, ServiceID: 1}})
	for i := 0; i < 3; i++ {
		if _, err := mgr.Create(context.Background(), 1, 0); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := mgr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, src := range opener.sources {
		if !src.closed.Load() {
			t.Fatal("Close left a source open")
		}
	}
}

func TestFFmpegOpenerUsesServiceProgram(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	dir := t.TempDir()
	ffprobe := filepath.Join(dir, "ffprobe")
	probeScript := `#!/bin/sh
cat <<'JSON'
{"programs":[{"program_id":1024,"streams":[{"index":0,"codec_type":"video"}]}],
 "streams":[{"index":0,"codec_type":"video"}],
 "format":{"duration":"100.0"}}
JSON
`
	if err := os.WriteFile(ffprobe, []byte(probeScript), 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}
	argsFile := filepath.Join(dir, "args")
	ffmpeg := filepath.Join(dir, "ffmpeg")
	ffmpegScript := "#!/bin/sh\necho \"$@\" > " + argsFile + "\nprintf 'PNG'\n"
	if err := os.WriteFile(ffmpeg, []byte(ffmpegScript), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}

	opener := FFmpegOpener{FFmpeg: ffmpeg, FFprobe: ffprobe, Timeout: 10 * time.Second}
	ctx := context.Background()
	if _, err := opener.Open(ctx, recording(t), 2048); err == nil {
		t.Fatal("expected error for a service missing from the program table")
	}
	src, err := opener.Open(ctx, recording(t), 1024)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	frame, err := src.Frame(ctx, 0.5)
	if err != nil || string(frame) != "PNG" {
		t.Fatalf("Frame = %q, %v", frame, err)
	}
	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	for _, want := range []string{"-ss 50.000", "-map 0:p:1024:v:0", "-c:v png"} {
		if !strings.Contains(string(args), want) {
			t.Fatalf("ffmpeg args %q missing %q", args, want)
		}
	}
}
