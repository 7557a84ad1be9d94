package replica

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"encmirror/internal/changelog"
	"encmirror/internal/clock"
	"encmirror/internal/event"
	"encmirror/internal/logging"
	"encmirror/internal/mirror"
	"encmirror/internal/model"
	"encmirror/internal/view"
)

// Source is the part of Client the replica reads from.
type Source interface {
	Snapshot(ctx context.Context) (mirror.Snapshot, error)
	Changes(ctx context.Context, since uint64) (mirror.ChangeSet, error)
}

// Options configures a Replica. Source is required.
type Options struct {
	Source Source
	Clock  clock.Clock
	Logger *slog.Logger
}

// SyncResult summarizes one Sync.
type SyncResult struct {
	Version  uint64
	Applied  int
	FullSync bool
	Changed  bool
}

// Replica is a locally maintained copy of the daemon's queue.
type Replica struct {
	source Source
	clock  clock.Clock
	logger *slog.Logger

	mu       sync.RWMutex
	loaded   bool
	version  uint64
	jobs     []model.Job
	counters model.Counters
	digest   string
}

// New builds an empty replica; the first Sync loads it.
func New(opts Options) (*Replica, error) {
	if opts.Source == nil {
		return nil, errors.New("replica: source is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Replica{
		source: opts.Source,
		clock:  opts.Clock,
		logger: logging.NewComponentLogger(opts.Logger, "replica"),
	}, nil
}

// Sync brings the replica current. The first call, and any call after the
// daemon reports the local version can no longer be caught up, loads the full
// snapshot; otherwise only the changes since the local version are applied.
func (r *Replica) Sync(ctx context.Context) (SyncResult, error) {
	r.mu.RLock()
	loaded, since := r.loaded, r.version
	r.mu.RUnlock()

	if !loaded {
		return r.fullSync(ctx)
	}

	changes, err := r.source.Changes(ctx, since)
	if err != nil {
		return SyncResult{}, err
	}
	if changes.FullSyncRequired {
		r.logger.Debug("daemon requested full sync", logging.Uint64(logging.FieldVersion, since))
		return r.fullSync(ctx)
	}

	r.mu.Lock()
	if r.version != since {
		// Another Sync advanced the replica meanwhile.
		r.mu.Unlock()
		return r.Sync(ctx)
	}
	applied, ok := r.applyLocked(changes)
	if !ok {
		r.mu.Unlock()
		return r.fullSync(ctx)
	}
	result := SyncResult{Version: r.version, Applied: applied, Changed: applied > 0}
	r.mu.Unlock()
	return result, nil
}

func (r *Replica) fullSync(ctx context.Context) (SyncResult, error) {
	snap, err := r.source.Snapshot(ctx)
	if err != nil {
		return SyncResult{}, err
	}
	visible := view.Visible(snap.Jobs)
	counters := model.CountJobs(visible)

	r.mu.Lock()
	defer r.mu.Unlock()
	changed := !r.loaded || r.version != snap.Version
	r.loaded = true
	r.version = snap.Version
	r.jobs = model.CloneJobs(snap.Jobs)
	r.counters = counters
	r.digest = view.Digest(counters, visible)
	r.logger.Debug("replica reloaded",
		logging.Uint64(logging.FieldVersion, r.version),
		logging.Int("jobs", len(r.jobs)),
	)
	return SyncResult{Version: r.version, FullSync: true, Changed: changed}, nil
}

// applyLocked replays changes onto the local list. It reports false when the
// records skip a version or the result disagrees with the daemon's digest.
func (r *Replica) applyLocked(changes mirror.ChangeSet) (int, bool) {
	if changes.ToVersion < r.version {
		return 0, false
	}
	jobs := model.CloneJobs(r.jobs)
	version := r.version
	for _, rec := range changes.Changes {
		if rec.Version <= version {
			continue
		}
		if rec.Version != version+1 {
			r.logger.Warn("version gap in queue changes",
				logging.Uint64(logging.FieldVersion, version),
				logging.Uint64("next", rec.Version),
			)
			return 0, false
		}
		jobs = applyChange(jobs, rec.Change)
		version = rec.Version
	}
	if version != changes.ToVersion {
		return 0, false
	}

	visible := view.Visible(jobs)
	counters := model.CountJobs(visible)
	digest := view.Digest(counters, visible)
	if changes.Digest != "" && digest != changes.Digest {
		r.logger.Warn("replica digest mismatch", logging.Uint64(logging.FieldVersion, version))
		return 0, false
	}

	applied := int(version - r.version)
	r.jobs = jobs
	r.version = version
	r.counters = counters
	r.digest = digest
	return applied, true
}

func applyChange(jobs []model.Job, change changelog.Change) []model.Job {
	indexOf := func(id int64) int {
		return slices.IndexFunc(jobs, func(job model.Job) bool { return job.ID == id })
	}
	switch change.Type {
	case event.UpdateAdd, event.UpdateUpdate:
		if change.Job == nil {
			return jobs
		}
		job := change.Job.Clone()
		if idx := indexOf(job.ID); idx >= 0 {
			jobs[idx] = job
		} else {
			jobs = append(jobs, job)
		}
	case event.UpdateRemove:
		if idx := indexOf(change.ID); idx >= 0 {
			jobs = slices.Delete(jobs, idx, idx+1)
		}
	case event.UpdateMove:
		idx := indexOf(change.ID)
		if idx < 0 {
			return jobs
		}
		job := jobs[idx]
		jobs = slices.Delete(jobs, idx, idx+1)
		pos := min(max(change.Position, 0), len(jobs))
		jobs = slices.Insert(jobs, pos, job)
	case event.UpdateClear:
		jobs = jobs[:0]
	}
	return jobs
}

// Run syncs immediately and then every interval until ctx ends. onChange,
// when set, is called after each sync that changed the replica. Sync errors
// are logged and retried on the next tick.
func (r *Replica) Run(ctx context.Context, interval time.Duration, onChange func(SyncResult)) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := r.Sync(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			r.logger.Warn("replica sync failed", logging.Error(err))
		case result.Changed && onChange != nil:
			onChange(result)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Items returns a copy of the local job list in queue order.
func (r *Replica) Items() []model.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return model.CloneJobs(r.jobs)
}

// Version returns the queue version the replica reflects.
func (r *Replica) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Counters returns the aggregate counts over visible jobs.
func (r *Replica) Counters() model.Counters {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters
}

// View materializes the local queue with filter, exactly as the daemon's
// /api/queue would.
func (r *Replica) View(filter view.Filter, hideOneSeg bool) view.QueueView {
	r.mu.RLock()
	state := model.QueueState{Version: r.version, Jobs: model.CloneJobs(r.jobs), HideOneSeg: hideOneSeg}
	r.mu.RUnlock()
	return view.BuildQueueView(state, filter)
}
