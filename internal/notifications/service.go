package notifications

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"encmirror/internal/config"
	"encmirror/internal/logging"
	"encmirror/internal/messages"
)

const (
	userAgent = "encmirror/1"
	queueSize = 64
)

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

// Notifier forwards hub messages at or above a minimum level to ntfy.
type Notifier struct {
	endpoint string
	minLevel messages.Level
	client   *http.Client
	logger   *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan messages.Message
	done   chan struct{}
}

// New returns a running notifier, or nil when no topic is configured.
func New(cfg *config.Config, logger *slog.Logger) *Notifier {
	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return nil
	}
	timeout := cfg.NotifyTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	n := &Notifier{
		endpoint: strings.TrimSpace(cfg.Notifications.NtfyTopic),
		minLevel: messages.Level(cfg.Notifications.MinLevel),
		client:   &http.Client{Timeout: timeout},
		logger:   logging.NewComponentLogger(logger, "notifications"),
		queue:    make(chan messages.Message, queueSize),
		done:     make(chan struct{}),
	}
	go n.run()
	return n
}

// Append implements messages.Sink. It never blocks.
func (n *Notifier) Append(msg messages.Message) {
	if n == nil || !n.wants(msg.Level) {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- msg:
	default:
		n.logger.Warn("notification queue full, dropping message", logging.Uint64("message_id", msg.ID))
	}
}

// Close stops accepting messages and waits for queued pushes to finish.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	<-n.done
}

func (n *Notifier) wants(level messages.Level) bool {
	if n.minLevel == messages.LevelInfo {
		return true
	}
	return level == messages.LevelError
}

func (n *Notifier) run() {
	defer close(n.done)
	for msg := range n.queue {
		if err := n.send(context.Background(), formatMessage(msg)); err != nil {
			n.logger.Warn("ntfy push failed",
				logging.Uint64("message_id", msg.ID),
				logging.Error(err),
			)
		}
	}
}

func formatMessage(msg messages.Message) payload {
	data := payload{
		title:   "encmirror",
		message: strings.TrimSpace(msg.Message),
		tags:    []string{"encmirror"},
	}
	if source := strings.TrimSpace(msg.Source); source != "" {
		data.tags = append(data.tags, source)
	}
	if msg.Level == messages.LevelError {
		data.title = "encmirror - Error"
		data.tags = append(data.tags, "warning")
		data.priority = "high"
	}
	if msg.Action != "" {
		data.title += " (" + msg.Action + ")"
	}
	if msg.RequestID != "" {
		data.message += "\nRequest: " + msg.RequestID
	}
	return data
}

func (n *Notifier) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
