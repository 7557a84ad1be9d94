package mirror

import (
	"slices"
	"strings"

	"encmirror/internal/changelog"
	"encmirror/internal/event"
	"encmirror/internal/logging"
	"encmirror/internal/model"
	"encmirror/internal/view"
)

// ChangeSet answers an incremental sync request.
type ChangeSet struct {
	FromVersion      uint64             `json:"fromVersion"`
	ToVersion        uint64             `json:"toVersion"`
	FullSyncRequired bool               `json:"fullSyncRequired"`
	Changes          []changelog.Record `json:"changes,omitempty"`
	Counters         model.Counters     `json:"counters"`
	Digest           string             `json:"digest"`
}

// admit copies a job entering the mirror and folds its state onto the
// canonical name, so "Queue" and "queued" both count as Queued.
func admit(job model.Job) model.Job {
	job = job.Clone()
	if state, ok := model.ParseState(string(job.State)); ok {
		job.State = state
	}
	return job
}

// replaceQueue installs a snapshot. A repeated id keeps its first position and
// takes the last copy's content.
func (m *Mirror) replaceQueue(jobs []model.Job) {
	next := make([]model.Job, 0, len(jobs))
	seen := make(map[int64]int, len(jobs))
	for _, job := range jobs {
		if strings.TrimSpace(job.SrcPath) == "" {
			continue
		}
		if idx, ok := seen[job.ID]; ok {
			next[idx] = admit(job)
			continue
		}
		seen[job.ID] = len(next)
		next = append(next, admit(job))
	}
	m.jobs = next
	m.version++
	m.changes.Reset()
	m.logger.Debug("queue replaced",
		logging.Int("jobs", len(next)),
		logging.Uint64(logging.FieldVersion, m.version),
	)
}

func (m *Mirror) indexOf(id int64) int {
	return slices.IndexFunc(m.jobs, func(job model.Job) bool { return job.ID == id })
}

func (m *Mirror) applyQueueDelta(d event.QueueDelta) {
	id := d.TargetID()
	change := changelog.Change{Type: d.Type, ID: id}

	switch d.Type {
	case event.UpdateAdd, event.UpdateUpdate:
		job := admit(*d.Job)
		if idx := m.indexOf(id); idx >= 0 {
			m.jobs[idx] = job
		} else {
			m.jobs = append(m.jobs, job)
		}
		change.Job = &job
	case event.UpdateRemove:
		idx := m.indexOf(id)
		if idx < 0 {
			m.logger.Debug("remove of unknown job ignored", logging.Int64(logging.FieldJobID, id))
			return
		}
		m.jobs = slices.Delete(m.jobs, idx, idx+1)
	case event.UpdateMove:
		idx := m.indexOf(id)
		if idx < 0 || d.Position > len(m.jobs) {
			m.logger.Debug("move ignored",
				logging.Int64(logging.FieldJobID, id),
				logging.Int("position", d.Position),
			)
			return
		}
		job := m.jobs[idx]
		m.jobs = slices.Delete(m.jobs, idx, idx+1)
		pos := min(d.Position, len(m.jobs))
		m.jobs = slices.Insert(m.jobs, pos, job)
		change.Position = pos
	case event.UpdateClear:
		clear(m.jobs)
		m.jobs = m.jobs[:0]
		change.ID = 0
	}

	m.version++
	m.changes.Append(m.version, change)
}

// QueryChanges returns the queue mutations after since, or flags that the
// caller must reload the full queue because since is ahead of the mirror or
// older than the retained history. Counters and digest describe the current
// queue either way.
func (m *Mirror) QueryChanges(since uint64) ChangeSet {
	m.mu.Lock()
	defer m.mu.Unlock()

	visible := view.Visible(m.jobs)
	counters := model.CountJobs(visible)
	out := ChangeSet{
		FromVersion: since,
		ToVersion:   m.version,
		Counters:    counters,
		Digest:      view.Digest(counters, visible),
	}

	switch {
	case since > m.version:
		out.FullSyncRequired = true
	case since == m.version:
	default:
		records, ok := m.changes.Since(since)
		if !ok {
			out.FullSyncRequired = true
			break
		}
		out.Changes = records
	}
	return out
}

// Job returns a copy of the job with the given id.
func (m *Mirror) Job(id int64) (model.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexOf(id)
	if idx < 0 {
		return model.Job{}, false
	}
	return m.jobs[idx].Clone(), true
}

// QueueState returns a copy of the job list with its version and the
// server-side one-seg visibility setting.
func (m *Mirror) QueueState() model.QueueState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return model.QueueState{
		Version:    m.version,
		Jobs:       model.CloneJobs(m.jobs),
		HideOneSeg: m.setting.HideOneSeg,
	}
}
