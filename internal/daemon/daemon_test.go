package daemon_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"encmirror/internal/api"
	"encmirror/internal/daemon"
	"encmirror/internal/event"
	"encmirror/internal/ingest"
	"encmirror/internal/model"
	"encmirror/internal/testsupport"
	"encmirror/internal/view"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDaemonStartStop(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := h.daemon.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != h.cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}
	if strings.HasSuffix(status.APIAddress, ":0") {
		t.Fatalf("expected bound api address, got %q", status.APIAddress)
	}

	if err := h.daemon.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	h.daemon.Stop()
	if h.daemon.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}

	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	h.daemon.Stop()
}

func TestSecondInstanceIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	other, err := daemon.New(daemon.Options{Config: h.cfg, Opener: &fakeOpener{}, Probe: fakeProbe{}})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	defer other.Close()
	err = other.Start(ctx)
	if err == nil {
		t.Fatal("expected second instance to fail")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIngestToAPIRoundTrip(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.daemon.Stop()

	conn, err := ingest.Dial(ctx, h.cfg.Paths.IngestSocket)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	jobs := []model.Job{
		testsupport.NewJob(1, model.StateEncoding, "/rec/a.ts"),
		testsupport.NewJob(2, model.StateQueued, "/rec/b.ts"),
	}
	if err := conn.Publish(event.QueueSnapshot{Jobs: jobs}); err != nil {
		t.Fatalf("Publish snapshot: %v", err)
	}
	if err := conn.Publish(event.QueueDelta{Type: event.UpdateMove, ID: 2, Position: 0}); err != nil {
		t.Fatalf("Publish move: %v", err)
	}
	waitFor(t, "queue version 2", func() bool { return h.daemon.Mirror().Version() == 2 })
	waitFor(t, "collaborator session", h.daemon.Connected)

	resp, err := http.Get("http://" + h.daemon.Status().APIAddress + "/api/queue")
	if err != nil {
		t.Fatalf("GET /api/queue: %v", err)
	}
	defer resp.Body.Close()
	var queueView view.QueueView
	if err := json.NewDecoder(resp.Body).Decode(&queueView); err != nil {
		t.Fatalf("decode queue: %v", err)
	}
	if len(queueView.Items) != 2 || queueView.Items[0].ID != 2 {
		t.Fatalf("expected moved job first, got %+v", queueView.Items)
	}

	body := `{"isPause":true}`
	w := h.do(t, http.MethodPost, "/api/commands/pause", strings.NewReader(body), "X-Request-ID", "req-1")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var ack api.CommandResponse
	decodeBody(t, w, &ack)
	if ack.RequestID != "req-1" || ack.Verb != "pause" {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	select {
	case cmd, ok := <-conn.Commands():
		if !ok {
			t.Fatal("command channel closed")
		}
		if cmd.Verb != event.VerbPause || cmd.RequestID != "req-1" || string(cmd.Body) != body {
			t.Fatalf("unexpected command: %+v", cmd)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for forwarded command")
	}

	if err := conn.Publish(event.OperationResult{Result: model.OperationResult{Message: "paused", RequestID: "req-1"}}); err != nil {
		t.Fatalf("Publish result: %v", err)
	}
	waitFor(t, "operation message", func() bool {
		_, ok := h.daemon.Messages().Latest("req-1")
		return ok
	})
}

func TestCommandRequestIDFromBody(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.daemon.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.daemon.Stop()

	conn, err := ingest.Dial(ctx, h.cfg.Paths.IngestSocket)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	waitFor(t, "collaborator session", h.daemon.Connected)

	w := h.do(t, http.MethodPost, "/api/commands/end-server", strings.NewReader(`{"requestId":"body-id"}`))
	var ack api.CommandResponse
	decodeBody(t, w, &ack)
	if ack.RequestID != "body-id" {
		t.Fatalf("expected body request id, got %+v", ack)
	}

	w = h.do(t, http.MethodPost, "/api/commands/cancel-sleep", nil)
	ack = api.CommandResponse{}
	decodeBody(t, w, &ack)
	if len(ack.RequestID) != 32 {
		t.Fatalf("expected generated request id, got %q", ack.RequestID)
	}
}

func TestFailedOperationsArePushedToNtfy(t *testing.T) {
	pushed := make(chan string, 4)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		pushed <- string(body)
	}))
	defer ntfy.Close()

	h := newHarness(t, nil, testsupport.WithNtfyTopic(ntfy.URL))
	testsupport.MustApply(t, h.daemon,
		event.OperationResult{Result: model.OperationResult{Message: "queue saved"}},
		event.OperationResult{Result: model.OperationResult{Message: "encode failed", IsFailed: true}},
	)
	// Close drains the push queue.
	if err := h.daemon.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case body := <-pushed:
		if body != "encode failed" {
			t.Fatalf("unexpected push %q", body)
		}
	default:
		t.Fatal("expected the failed operation to be pushed")
	}
	if len(pushed) != 0 {
		t.Fatalf("expected only the error to be pushed, %d extra", len(pushed))
	}
}
