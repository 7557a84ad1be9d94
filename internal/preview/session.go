package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"encmirror/internal/clock"
	"encmirror/internal/logging"
	"encmirror/internal/model"
)

// DefaultTTL is how long an untouched session survives.
const DefaultTTL = 60 * time.Second

var (
	ErrJobNotFound     = errors.New("queue item not found")
	ErrNoSourcePath    = errors.New("queue item has no source path")
	ErrSourceMissing   = errors.New("source file does not exist")
	ErrNoServiceID     = errors.New("service id is required")
	ErrSessionNotFound = errors.New("preview session not found")
	ErrInvalidPosition = errors.New("position must be within [0,1]")
)

// FrameSource renders frames from one opened recording. Implementations need
// not be safe for concurrent use; the manager serializes calls per session.
type FrameSource interface {
	Frame(ctx context.Context, pos float64) ([]byte, error)
	Close() error
}

// Opener opens a FrameSource for the given file and service.
type Opener interface {
	Open(ctx context.Context, path string, serviceID int) (FrameSource, error)
}

// JobSource looks up queue jobs.
type JobSource interface {
	Job(id int64) (model.Job, bool)
}

// Info describes a live session.
type Info struct {
	ID         string    `json:"id"`
	JobID      int64     `json:"jobId"`
	ServiceID  int       `json:"serviceId"`
	Path       string    `json:"path"`
	Created    time.Time `json:"created"`
	LastAccess time.Time `json:"lastAccess"`
}

// Options configures a Manager. Jobs and Opener are required.
type Options struct {
	Jobs   JobSource
	Opener Opener
	TTL    time.Duration
	Clock  clock.Clock
	Logger *slog.Logger
	// Stat checks the source path; defaults to os.Stat.
	Stat func(string) (os.FileInfo, error)
}

type session struct {
	info Info // LastAccess guarded by Manager.mu

	mu     sync.Mutex
	source FrameSource
	closed bool
}

// Manager owns all preview sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
	evicting sync.WaitGroup

	jobs   JobSource
	opener Opener
	ttl    time.Duration
	clock  clock.Clock
	logger *slog.Logger
	stat   func(string) (os.FileInfo, error)
}

// NewManager builds a Manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Jobs == nil {
		return nil, errors.New("preview: job source is required")
	}
	if opts.Opener == nil {
		return nil, errors.New("preview: opener is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Stat == nil {
		opts.Stat = os.Stat
	}
	return &Manager{
		sessions: make(map[string]*session),
		jobs:     opts.Jobs,
		opener:   opts.Opener,
		ttl:      opts.TTL,
		clock:    opts.Clock,
		logger:   logging.NewComponentLogger(opts.Logger, "preview"),
		stat:     opts.Stat,
	}, nil
}

// Create opens a session on the job's source file. serviceHint is used when
// the job itself does not carry a service id.
func (m *Manager) Create(ctx context.Context, jobID int64, serviceHint int) (Info, error) {
	m.sweep()

	job, ok := m.jobs.Job(jobID)
	if !ok {
		return Info{}, fmt.Errorf("%w: %d", ErrJobNotFound, jobID)
	}
	path := strings.TrimSpace(job.SrcPath)
	if path == "" {
		return Info{}, fmt.Errorf("%w: job %d", ErrNoSourcePath, jobID)
	}
	if _, err := m.stat(path); err != nil {
		return Info{}, fmt.Errorf("%w: %s", ErrSourceMissing, path)
	}
	serviceID := job.ServiceID
	if serviceID <= 0 {
		serviceID = serviceHint
	}
	if serviceID <= 0 {
		return Info{}, fmt.Errorf("%w: job %d", ErrNoServiceID, jobID)
	}

	source, err := m.opener.Open(ctx, path, serviceID)
	if err != nil {
		return Info{}, fmt.Errorf("open preview source: %w", err)
	}

	now := m.clock.Now()
	s := &session{
		info: Info{
			ID:         strings.ReplaceAll(uuid.NewString(), "-", ""),
			JobID:      jobID,
			ServiceID:  serviceID,
			Path:       path,
			Created:    now,
			LastAccess: now,
		},
		source: source,
	}

	m.mu.Lock()
	m.sessions[s.info.ID] = s
	m.mu.Unlock()

	m.logger.Info("preview session opened",
		logging.String(logging.FieldSessionID, s.info.ID),
		logging.Int64(logging.FieldJobID, jobID),
		logging.Int("service_id", serviceID),
	)
	return s.info, nil
}

// Frame renders the frame at pos, a fraction of the recording's duration.
// It refreshes the session's TTL.
func (m *Manager) Frame(ctx context.Context, id string, pos float64) ([]byte, error) {
	if math.IsNaN(pos) || pos < 0 || pos > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPosition, pos)
	}
	m.sweep()

	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		s.info.LastAccess = m.clock.Now()
	}
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	frame, err := s.source.Frame(ctx, pos)
	if err != nil {
		return nil, fmt.Errorf("render frame: %w", err)
	}
	return frame, nil
}

// Touch refreshes a session's TTL without rendering.
func (m *Manager) Touch(id string) error {
	m.sweep()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.info.LastAccess = m.clock.Now()
	return nil
}

// Get returns session info without refreshing its TTL.
func (m *Manager) Get(id string) (Info, bool) {
	m.sweep()
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Info{}, false
	}
	return s.info, true
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.sweep()
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Remove closes and forgets a session. It reports whether one existed.
func (m *Manager) Remove(id string) bool {
	m.sweep()
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.closeSession(s, "removed")
	return true
}

// Close releases every session.
func (m *Manager) Close() error {
	m.mu.Lock()
	all := make([]*session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, s := range all {
		errs = append(errs, m.closeSession(s, "shutdown"))
	}
	m.evicting.Wait()
	return errors.Join(errs...)
}

// sweep evicts sessions idle longer than the TTL. Each expired source is
// closed on its own goroutine under its session lock: a frame grab already in
// progress finishes first, and the caller never waits on another session.
func (m *Manager) sweep() {
	now := m.clock.Now()
	m.mu.Lock()
	var expired []*session
	for id, s := range m.sessions {
		if now.Sub(s.info.LastAccess) > m.ttl {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		m.evicting.Go(func() { _ = m.closeSession(s, "expired") })
	}
}

func (m *Manager) closeSession(s *session, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.source.Close()
	attrs := []logging.Attr{
		logging.String(logging.FieldSessionID, s.info.ID),
		logging.String("reason", reason),
	}
	if err != nil {
		m.logger.Warn("preview session close failed", logging.Args(append(attrs, logging.Error(err))...)...)
		return err
	}
	m.logger.Debug("preview session closed", logging.Args(attrs...)...)
	return nil
}
