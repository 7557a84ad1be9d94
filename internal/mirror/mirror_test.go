package mirror

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"encmirror/internal/event"
	"encmirror/internal/model"
	"encmirror/internal/view"
)

func job(id int64, state model.JobState) *model.Job {
	return &model.Job{ID: id, SrcPath: "/rec/job.ts", FileName: "job.ts", State: state}
}

func addJob(id int64, state model.JobState) event.QueueDelta {
	return event.QueueDelta{Type: event.UpdateAdd, Job: job(id, state)}
}

func updateJob(id int64, state model.JobState) event.QueueDelta {
	return event.QueueDelta{Type: event.UpdateUpdate, Job: job(id, state)}
}

func jobIDs(jobs []model.Job) []int64 {
	out := make([]int64, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.ID)
	}
	return out
}

func sampleEvents() []event.Event {
	return []event.Event{
		event.ServerInfoUpdate{Info: model.ServerInfo{HostName: "enc01"}},
		event.StateUpdate{State: model.State{Running: true, EncoderSuspended: []bool{false, true}}},
		addJob(1, model.StateQueued),
		addJob(2, model.StateQueued),
		addJob(3, model.StateQueued),
		updateJob(1, model.StateEncoding),
		event.QueueDelta{Type: event.UpdateMove, ID: 3, Position: 0},
		event.ConsoleAppend{Slot: 0, Data: []byte("start\n10%\r20%\r")},
		event.EncodeProgressUpdate{Slot: 1, State: model.EncodeState{ConsoleID: 1, Phase: "CM analysis"}},
		event.QueueDelta{Type: event.UpdateRemove, ID: 2},
		event.ProfileDelta{Type: event.UpdateAdd, Profile: &model.Profile{Name: "HEVC"}},
		event.LogAppend{Item: model.LogItem{SrcPath: "/rec/old.ts", Success: true}},
		event.LogAppend{Item: model.LogItem{SrcPath: "/rec/new.ts", Success: true}},
		event.OperationResult{Result: model.OperationResult{Message: "queued"}, Time: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		updateJob(1, model.StateComplete),
	}
}

func TestApplyOneByOneMatchesBatches(t *testing.T) {
	events := sampleEvents()

	single := New(Options{})
	for _, evt := range events {
		if err := single.Apply(evt); err != nil {
			t.Fatalf("apply %s: %v", evt.Kind(), err)
		}
	}

	for _, size := range []int{1, 2, 3, 5, len(events)} {
		batched := New(Options{})
		for start := 0; start < len(events); start += size {
			end := min(start+size, len(events))
			if err := batched.ApplyBatch(events[start:end]); err != nil {
				t.Fatalf("batch %d: %v", size, err)
			}
		}
		if !reflect.DeepEqual(single.Snapshot(), batched.Snapshot()) {
			t.Fatalf("batch size %d diverged from one-by-one application", size)
		}
	}
}

func TestVersionCountsQueueMutations(t *testing.T) {
	m := New(Options{})
	for i := int64(1); i <= 5; i++ {
		_ = m.Apply(addJob(i, model.StateQueued))
		_ = m.Apply(event.StateUpdate{State: model.State{Running: true}})
	}
	if got := m.Version(); got != 5 {
		t.Fatalf("version = %d, want 5", got)
	}

	_ = m.Apply(event.QueueSnapshot{Jobs: []model.Job{*job(9, model.StateQueued), {ID: 10}}})
	if got := m.Version(); got != 6 {
		t.Fatalf("snapshot should consume one version, got %d", got)
	}
	if ids := jobIDs(m.QueueState().Jobs); !reflect.DeepEqual(ids, []int64{9}) {
		t.Fatalf("snapshot kept %v, want [9]", ids)
	}
	if cs := m.QueryChanges(5); !cs.FullSyncRequired {
		t.Fatal("snapshot should clear the change log")
	}
}

func TestQueryChangesBoundaries(t *testing.T) {
	m := New(Options{ChangeHistory: 3})
	for i := int64(1); i <= 6; i++ {
		_ = m.Apply(addJob(i, model.StateQueued))
	}

	if cs := m.QueryChanges(6); cs.FullSyncRequired || len(cs.Changes) != 0 {
		t.Fatalf("current version: %+v", cs)
	}
	if cs := m.QueryChanges(7); !cs.FullSyncRequired {
		t.Fatal("future version should require full sync")
	}
	if cs := m.QueryChanges(1); !cs.FullSyncRequired {
		t.Fatal("evicted range should require full sync")
	}
	cs := m.QueryChanges(3)
	if cs.FullSyncRequired || len(cs.Changes) != 3 {
		t.Fatalf("since 3: %+v", cs)
	}
	for i, rec := range cs.Changes {
		if rec.Version != uint64(4+i) {
			t.Fatalf("record %d has version %d", i, rec.Version)
		}
	}
	if cs.Counters.Active != 6 || cs.Digest == "" {
		t.Fatalf("counters/digest missing: %+v", cs)
	}
	if cs.FromVersion != 3 || cs.ToVersion != 6 {
		t.Fatalf("range = %d..%d", cs.FromVersion, cs.ToVersion)
	}
}

func TestQueryChangesEmptyLog(t *testing.T) {
	m := New(Options{})
	if cs := m.QueryChanges(0); cs.FullSyncRequired {
		t.Fatal("empty mirror at version 0 is current")
	}
	_ = m.Apply(event.QueueSnapshot{Jobs: []model.Job{*job(1, model.StateQueued)}})
	if cs := m.QueryChanges(0); !cs.FullSyncRequired {
		t.Fatal("client behind a snapshot needs full sync")
	}
	if cs := m.QueryChanges(1); cs.FullSyncRequired {
		t.Fatal("client at snapshot version is current")
	}
}

func TestJob42Scenario(t *testing.T) {
	m := New(Options{})
	if err := m.Apply(addJob(42, model.StateQueued)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if v := m.Version(); v != 1 {
		t.Fatalf("version after add = %d", v)
	}
	if err := m.Apply(updateJob(42, model.StateEncoding)); err != nil {
		t.Fatalf("update: %v", err)
	}
	if v := m.Version(); v != 2 {
		t.Fatalf("version after update = %d", v)
	}

	cs := m.QueryChanges(0)
	if cs.FullSyncRequired || len(cs.Changes) != 2 {
		t.Fatalf("QueryChanges(0) = %+v", cs)
	}
	if cs.Changes[0].Change.Type != event.UpdateAdd || cs.Changes[1].Change.Type != event.UpdateUpdate {
		t.Fatalf("unexpected change types %+v", cs.Changes)
	}
	if cs := m.QueryChanges(2); cs.FullSyncRequired || len(cs.Changes) != 0 {
		t.Fatalf("QueryChanges(2) = %+v", cs)
	}

	encoding := view.BuildQueueView(m.QueueState(), view.Filter{States: []string{"Encoding"}})
	if len(encoding.Items) != 1 || encoding.Items[0].ID != 42 {
		t.Fatalf("encoding view = %+v", encoding.Items)
	}
	complete := view.BuildQueueView(m.QueueState(), view.Filter{States: []string{"Complete"}})
	if len(complete.Items) != 0 || complete.Counters.Encoding != 1 {
		t.Fatalf("complete view = %+v", complete)
	}
}

func TestCountersIndependentOfFilter(t *testing.T) {
	m := New(Options{})
	for i := int64(1); i <= 3; i++ {
		_ = m.Apply(addJob(i, model.StateEncoding))
	}
	_ = m.Apply(addJob(4, model.StateComplete))
	_ = m.Apply(addJob(5, model.StateComplete))

	v := view.BuildQueueView(m.QueueState(), view.Filter{States: []string{"Complete"}})
	if len(v.Items) != 2 || v.Counters.Encoding != 3 || v.Counters.Complete != 2 {
		t.Fatalf("view = %+v", v)
	}
}

func TestMalformedEventsAreDropped(t *testing.T) {
	m := New(Options{})
	_ = m.Apply(addJob(1, model.StateQueued))
	before := m.Snapshot()

	bad := []event.Event{
		nil,
		event.QueueDelta{Type: event.UpdateAdd},
		event.QueueDelta{Type: event.UpdateUpdate, Job: &model.Job{ID: 2}},
		event.QueueDelta{Type: event.UpdateRemove},
		event.QueueDelta{Type: "explode", ID: 1},
		event.ConsoleAppend{Slot: -5, Data: []byte("x\n")},
		event.ProfileDelta{Type: event.UpdateAdd},
	}
	for _, evt := range bad {
		if err := m.Apply(evt); !errors.Is(err, event.ErrMalformed) {
			t.Fatalf("Apply(%#v) = %v, want ErrMalformed", evt, err)
		}
	}
	if !reflect.DeepEqual(before, m.Snapshot()) {
		t.Fatal("malformed events mutated the mirror")
	}
}

func TestUnknownTargetsConsumeNoVersion(t *testing.T) {
	m := New(Options{})
	_ = m.Apply(addJob(1, model.StateQueued))
	_ = m.Apply(event.QueueDelta{Type: event.UpdateRemove, ID: 99})
	_ = m.Apply(event.QueueDelta{Type: event.UpdateMove, ID: 99, Position: 0})
	_ = m.Apply(event.QueueDelta{Type: event.UpdateMove, ID: 1, Position: 5})
	if v := m.Version(); v != 1 {
		t.Fatalf("version = %d, want 1", v)
	}
}

func TestQueueDeltaSemantics(t *testing.T) {
	m := New(Options{})
	for i := int64(1); i <= 3; i++ {
		_ = m.Apply(addJob(i, model.StateQueued))
	}
	dup := addJob(2, model.StateEncoding)
	dup.Job.Priority = 5
	_ = m.Apply(dup)
	state := m.QueueState()
	if ids := jobIDs(state.Jobs); !reflect.DeepEqual(ids, []int64{1, 2, 3}) {
		t.Fatalf("duplicate add changed order: %v", ids)
	}
	if state.Jobs[1].Priority != 5 || state.Jobs[1].State != model.StateEncoding {
		t.Fatalf("duplicate add should replace in place: %+v", state.Jobs[1])
	}

	_ = m.Apply(event.QueueDelta{Type: event.UpdateMove, ID: 1, Position: 3})
	if ids := jobIDs(m.QueueState().Jobs); !reflect.DeepEqual(ids, []int64{2, 3, 1}) {
		t.Fatalf("move to end = %v", ids)
	}
	_ = m.Apply(event.QueueDelta{Type: event.UpdateMove, ID: 1, Position: 0})
	if ids := jobIDs(m.QueueState().Jobs); !reflect.DeepEqual(ids, []int64{1, 2, 3}) {
		t.Fatalf("move to front = %v", ids)
	}

	_ = m.Apply(event.QueueDelta{Type: event.UpdateClear})
	if n := len(m.QueueState().Jobs); n != 0 {
		t.Fatalf("clear left %d jobs", n)
	}
	cs := m.QueryChanges(4)
	if len(cs.Changes) != 3 || cs.Changes[2].Change.Type != event.UpdateClear {
		t.Fatalf("changes = %+v", cs.Changes)
	}
	if cs.Changes[0].Change.Position != 2 {
		t.Fatalf("move to end recorded position %d", cs.Changes[0].Change.Position)
	}
}

func TestQueueAliasIsNormalized(t *testing.T) {
	m := New(Options{})
	_ = m.Apply(addJob(42, "Queue"))
	_ = m.Apply(event.QueueSnapshot{Jobs: []model.Job{*job(7, "queue"), *job(42, "Queue")}})

	state := m.QueueState()
	for _, j := range state.Jobs {
		if j.State != model.StateQueued {
			t.Fatalf("job %d stored state %q, want %q", j.ID, j.State, model.StateQueued)
		}
	}
	v := view.BuildQueueView(state, view.Filter{States: []string{"Queued"}})
	if len(v.Items) != 2 || v.Counters.Active != 2 {
		t.Fatalf("view = %+v", v)
	}

	_ = m.Apply(updateJob(7, "Queue"))
	if got, _ := m.Job(7); got.State != model.StateQueued {
		t.Fatalf("update stored state %q", got.State)
	}
}

func TestSnapshotCollapsesRepeatedIDs(t *testing.T) {
	m := New(Options{})
	_ = m.Apply(event.QueueSnapshot{Jobs: []model.Job{
		*job(5, model.StateQueued),
		*job(6, model.StateQueued),
		*job(5, model.StateEncoding),
	}})

	state := m.QueueState()
	if ids := jobIDs(state.Jobs); !reflect.DeepEqual(ids, []int64{5, 6}) {
		t.Fatalf("ids after snapshot = %v", ids)
	}
	if state.Jobs[0].State != model.StateEncoding {
		t.Fatalf("repeated id should keep the last copy, got %q", state.Jobs[0].State)
	}

	_ = m.Apply(event.QueueDelta{Type: event.UpdateRemove, ID: 5})
	if ids := jobIDs(m.QueueState().Jobs); !reflect.DeepEqual(ids, []int64{6}) {
		t.Fatalf("ids after remove = %v", ids)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	m := New(Options{})
	_ = m.ApplyBatch(sampleEvents())
	snap := m.Snapshot()
	snap.Jobs[0].FileName = "mutated"
	snap.Consoles[0].Lines[0] = "mutated"
	snap.State.EncoderSuspended[0] = true

	again := m.Snapshot()
	if again.Jobs[0].FileName == "mutated" || again.Consoles[0].Lines[0] == "mutated" || again.State.EncoderSuspended[0] {
		t.Fatal("snapshot shares memory with the mirror")
	}
	if j, ok := m.Job(1); !ok || j.State != model.StateComplete {
		t.Fatalf("Job(1) = %+v %v", j, ok)
	}
	if _, ok := m.Job(2); ok {
		t.Fatal("removed job still present")
	}
}

func TestConsoleHandling(t *testing.T) {
	m := New(Options{ConsoleLines: 3})
	_ = m.ApplyBatch([]event.Event{
		event.StateUpdate{State: model.State{EncoderSuspended: []bool{false, true}}},
		event.ConsoleSnapshot{Slot: 1, Lines: []string{"a", "b", "c", "d"}},
		event.ConsoleAppend{Slot: 1, Data: []byte("e\n")},
		event.ConsoleAppend{Slot: -1, Data: []byte("adding job\n")},
		event.ConsoleAppend{Slot: 0, Data: []byte("50%\r60%\r")},
		event.EncodeProgressUpdate{Slot: 0, State: model.EncodeState{Phase: "encode", Resource: model.Resource{CPU: 2}}},
	})

	consoles := m.Consoles()
	if len(consoles) != 3 || consoles[0].Slot != -1 || consoles[2].Slot != 1 {
		t.Fatalf("consoles = %+v", consoles)
	}
	if got := consoles[2].Lines; !reflect.DeepEqual(got, []string{"c", "d", "e"}) {
		t.Fatalf("slot 1 lines = %v", got)
	}
	if !consoles[2].Suspended || consoles[1].Suspended {
		t.Fatal("suspend flags not copied from state")
	}
	slot0, ok := m.Console(0)
	if !ok || !reflect.DeepEqual(slot0.Lines, []string{"60%"}) || slot0.Phase != "encode" || slot0.Resource.CPU != 2 {
		t.Fatalf("slot 0 = %+v", slot0)
	}
}

func TestAggregateDeltas(t *testing.T) {
	m := New(Options{})
	_ = m.ApplyBatch([]event.Event{
		event.ProfileDelta{Type: event.UpdateAdd, Profile: &model.Profile{Name: "Anime"}},
		event.ProfileDelta{Type: event.UpdateUpdate, Profile: &model.Profile{Name: "anime", Body: []byte{1}}},
		event.ProfileDelta{Type: event.UpdateUpdate, Profile: &model.Profile{Name: "anime"}, NewName: "Cartoon"},
		event.ProfileDelta{Type: event.UpdateAdd, Profile: &model.Profile{Name: "News"}},
		event.ProfileDelta{Type: event.UpdateRemove, Profile: &model.Profile{Name: "NEWS"}},
		event.AutoSelectDelta{Type: event.UpdateAdd, AutoSelect: &model.AutoSelect{Name: "default"}},
		event.AutoSelectDelta{Type: event.UpdateClear},
		event.ServiceSettingDelta{Type: event.UpdateAdd, Data: &model.ServiceSetting{ServiceID: 1024, LogoSettings: []model.LogoSetting{{FileName: "a.lgd"}, {FileName: "b.lgd"}}}},
		event.ServiceSettingDelta{Type: event.UpdateRemoveLogo, ServiceID: 1024, LogoIndex: 0},
		event.DrcsDelta{Type: event.UpdateAdd, Images: []model.DrcsImage{{MD5: "aa", MapStr: "①"}, {MD5: "bb"}}},
		event.DrcsDelta{Type: event.UpdateRemove, Image: &model.DrcsImage{MD5: "bb"}},
	})

	snap := m.Snapshot()
	if len(snap.Profiles) != 1 {
		t.Fatalf("profiles = %v", snap.Profiles)
	}
	if p, ok := snap.Profiles["Cartoon"]; !ok || len(p.Body) != 0 {
		t.Fatalf("rename failed: %+v", snap.Profiles)
	}
	if len(snap.AutoSelects) != 0 {
		t.Fatalf("auto selects = %v", snap.AutoSelects)
	}
	svc := snap.Services[1024]
	if len(svc.LogoSettings) != 1 || svc.LogoSettings[0].FileName != "b.lgd" {
		t.Fatalf("service = %+v", svc)
	}
	if len(snap.Drcs) != 1 || snap.Drcs["aa"].MapStr != "①" {
		t.Fatalf("drcs = %+v", snap.Drcs)
	}
}

func TestScalarsAndLogs(t *testing.T) {
	m := New(Options{})
	_ = m.ApplyBatch(sampleEvents())
	_ = m.ApplyBatch([]event.Event{
		event.CurrentLogFilePath{Path: `C:\logs\1.txt`},
		event.SleepCancelNotice{Finish: model.FinishSetting{Action: model.FinishSuspend, Seconds: 60}},
		event.DiskInfoUpdate{Disks: []model.DiskItem{{Path: "D:", Capacity: 10, Free: 4}}},
		event.CPUTopologyUpdate{Topology: model.CPUTopology{Cores: 8, Groups: []int{0, 1}}},
		event.SettingUpdate{Setting: model.Setting{HideOneSeg: true}},
	})
	snap := m.Snapshot()
	if snap.EncodeLog[0].SrcPath != "/rec/new.ts" {
		t.Fatalf("encode log should be newest first: %+v", snap.EncodeLog)
	}
	if snap.LastOperation == nil || snap.LastOperation.Result.Message != "queued" {
		t.Fatalf("last operation = %+v", snap.LastOperation)
	}
	if snap.Finish == nil || snap.Finish.Seconds != 60 || snap.CurrentLogPath == "" {
		t.Fatalf("scalars = %+v %q", snap.Finish, snap.CurrentLogPath)
	}
	if len(snap.Disks) != 1 || snap.CPU.Cores != 8 || snap.ServerInfo.HostName != "enc01" {
		t.Fatalf("system info = %+v %+v %+v", snap.Disks, snap.CPU, snap.ServerInfo)
	}
	if !m.QueueState().HideOneSeg {
		t.Fatal("setting should drive one-seg visibility")
	}
	_ = m.Apply(event.LogSnapshot{Items: []model.LogItem{{SrcPath: "a"}, {SrcPath: "b"}}})
	if got := m.Snapshot().EncodeLog; got[0].SrcPath != "b" {
		t.Fatalf("log snapshot order = %+v", got)
	}
}
