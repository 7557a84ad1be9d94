package testsupport

import (
	"testing"

	"encmirror/internal/event"
	"encmirror/internal/model"
)

// Applier accepts push events; the mirror and the daemon both satisfy it.
type Applier interface {
	Apply(evt event.Event) error
}

// NewJob returns a minimal visible job.
func NewJob(id int64, state model.JobState, srcPath string) model.Job {
	return model.Job{ID: id, State: state, SrcPath: srcPath, Priority: 3}
}

// MustApply applies events in order and fails the test on the first error.
func MustApply(t testing.TB, a Applier, events ...event.Event) {
	t.Helper()
	for i, evt := range events {
		if err := a.Apply(evt); err != nil {
			t.Fatalf("apply event %d (%s): %v", i, evt.Kind(), err)
		}
	}
}

// SeedQueue replaces the queue with jobs via a snapshot event.
func SeedQueue(t testing.TB, a Applier, jobs ...model.Job) {
	t.Helper()
	MustApply(t, a, event.QueueSnapshot{Jobs: jobs})
}
