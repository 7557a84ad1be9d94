package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"encmirror/internal/clock"
	"encmirror/internal/config"
	"encmirror/internal/deps"
	"encmirror/internal/event"
	"encmirror/internal/ingest"
	"encmirror/internal/logging"
	"encmirror/internal/messages"
	"encmirror/internal/mirror"
	"encmirror/internal/notifications"
	"encmirror/internal/platform"
	"encmirror/internal/preview"
)

// Options carries the daemon's collaborators. Config is required; the rest
// default to production implementations.
type Options struct {
	Config *config.Config
	Logger *slog.Logger
	Clock  clock.Clock
	Probe  platform.Probe
	Opener preview.Opener
}

// Daemon owns the mirror and every surface that feeds or reads it.
type Daemon struct {
	cfg    *config.Config
	base   *slog.Logger
	logger *slog.Logger
	clock  clock.Clock
	probe  platform.Probe

	mirror   *mirror.Mirror
	hub      *messages.Hub
	archive  *messages.Archive
	notifier *notifications.Notifier
	previews *preview.Manager
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	ingest  *ingest.Server
	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Connected    bool
	Version      uint64
	Sessions     int
	LockFilePath string
	IngestSocket string
	APIAddress   string
	ArchivePath  string
}

// New constructs a daemon. The message archive, when configured, is opened
// immediately so previously archived ids are not reused.
func New(opts Options) (*Daemon, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	probe := opts.Probe
	if probe == nil {
		probe = platform.New()
	}
	opener := opts.Opener
	if opener == nil {
		opener = preview.FFmpegOpener{
			FFmpeg:  cfg.Preview.FFmpegBinary,
			FFprobe: deps.ResolveFFprobe(cfg.Preview.FFmpegBinary, cfg.Preview.FFprobeBinary),
			Timeout: cfg.FrameTimeout(),
		}
	}

	d := &Daemon{
		cfg:      cfg,
		base:     logger,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		clock:    clk,
		probe:    probe,
		hub:      messages.NewHub(cfg.Mirror.MessageHistory, clk),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.mirror = mirror.New(mirror.Options{
		ChangeHistory: cfg.Mirror.ChangeHistory,
		ConsoleLines:  cfg.Mirror.ConsoleLines,
		Logger:        logger,
	})

	previews, err := preview.NewManager(preview.Options{
		Jobs:   d.mirror,
		Opener: opener,
		TTL:    cfg.SessionTTL(),
		Clock:  clk,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	d.previews = previews

	if path := cfg.Mirror.MessageArchive; path != "" {
		archive, err := messages.OpenArchive(path, logger)
		if err != nil {
			return nil, fmt.Errorf("open message archive: %w", err)
		}
		lastID, err := archive.LastID(context.Background())
		if err != nil {
			_ = archive.Close()
			return nil, fmt.Errorf("read message archive: %w", err)
		}
		d.hub.Resume(lastID)
		d.hub.AddSink(archive)
		d.archive = archive
	}

	if notifier := notifications.New(cfg, logger); notifier != nil {
		d.hub.AddSink(notifier)
		d.notifier = notifier
	}

	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock, opens the ingest socket, and begins
// serving the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another encmirrord instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	srv, err := ingest.NewServer(runCtx, d.cfg.Paths.IngestSocket, d, d.base)
	if err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start ingest: %w", err)
	}
	srv.Serve()

	if err := d.api.start(runCtx); err != nil {
		srv.Close()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.ingest = srv
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("encmirrord started",
		logging.String("lock", d.lockPath),
		logging.String("ingest_socket", srv.Path()),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop closes the ingest socket and API listener and releases the lock. The
// mirror keeps its state.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if d.ingest != nil {
		d.ingest.Close()
		d.ingest = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("encmirrord stopped")
}

// Close stops the daemon and releases preview sessions and the archive.
func (d *Daemon) Close() error {
	d.Stop()
	d.notifier.Close()
	var errs []error
	if err := d.previews.Close(); err != nil {
		errs = append(errs, err)
	}
	if d.archive != nil {
		if err := d.archive.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Apply is the ingest sink: it updates the mirror and records operation
// results as messages.
func (d *Daemon) Apply(evt event.Event) error {
	if err := d.mirror.Apply(evt); err != nil {
		return err
	}
	if result, ok := evt.(event.OperationResult); ok {
		d.hub.Publish(result.Result)
	}
	return nil
}

// Forward sends a command to the connected encode server.
func (d *Daemon) Forward(cmd event.Command) error {
	d.mu.Lock()
	srv := d.ingest
	d.mu.Unlock()
	if srv == nil {
		return ingest.ErrNoCollaborator
	}
	return srv.Forward(cmd)
}

// Connected reports whether an encode server is attached.
func (d *Daemon) Connected() bool {
	d.mu.Lock()
	srv := d.ingest
	d.mu.Unlock()
	return srv != nil && srv.Connected()
}

// Mirror exposes the replicated state.
func (d *Daemon) Mirror() *mirror.Mirror { return d.mirror }

// Messages exposes the message hub.
func (d *Daemon) Messages() *messages.Hub { return d.hub }

// Handler returns the HTTP API handler, including auth and compression.
func (d *Daemon) Handler() http.Handler { return d.api.handler }

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	status := Status{
		Running:      d.running.Load(),
		Connected:    d.Connected(),
		Version:      d.mirror.Version(),
		Sessions:     d.previews.Len(),
		LockFilePath: d.lockPath,
		IngestSocket: d.cfg.Paths.IngestSocket,
		APIAddress:   d.api.address(),
	}
	if d.archive != nil {
		status.ArchivePath = d.archive.Path()
	}
	return status
}
