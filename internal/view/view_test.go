package view

import (
	"testing"
	"time"

	"encmirror/internal/model"
)

func sampleQueue() model.QueueState {
	day := func(d int) time.Time { return time.Date(2024, 5, d, 12, 0, 0, 0, time.UTC) }
	return model.QueueState{
		Version: 7,
		Jobs: []model.Job{
			{ID: 1, SrcPath: "/rec/news.ts", FileName: "news.ts", ServiceName: "NHK", ProfileName: "hevc", State: model.StateComplete, EncodeStart: day(1), EncodeFinish: day(1).Add(time.Hour)},
			{ID: 2, SrcPath: "/rec/anime.ts", FileName: "anime.ts", ServiceName: "TOKYO MX", ProfileName: "anime", State: model.StateEncoding, Mode: model.ModeBatch, ConsoleID: 1, EncodeStart: day(3)},
			{ID: 3, SrcPath: "/rec/drama.ts", FileName: "drama.ts", ServiceName: "TBS", ProfileName: "hevc", State: model.StateQueued},
			{ID: 4, SrcPath: "/rec/oneseg.ts", FileName: "oneseg.ts", ServiceName: "NHK", State: model.StatePreFailed, FailReason: "映像が小さすぎます (320x180)"},
			{ID: 5, SrcPath: "", FileName: "ghost.ts", State: model.StateQueued},
		},
	}
}

func ids(items []ItemView) []int64 {
	out := make([]int64, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func equalIDs(got []int64, want ...int64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestBuildQueueViewUnfiltered(t *testing.T) {
	v := BuildQueueView(sampleQueue(), Filter{})
	if v.Version != 7 {
		t.Fatalf("version = %d", v.Version)
	}
	if got := ids(v.Items); !equalIDs(got, 1, 2, 3, 4) {
		t.Fatalf("items = %v", got)
	}
	want := model.Counters{Active: 2, Encoding: 1, Complete: 1, Failed: 1}
	if v.Counters != want {
		t.Fatalf("counters = %+v, want %+v", v.Counters, want)
	}
	if len(v.Digest) != 64 {
		t.Fatalf("digest %q is not 32 hex bytes", v.Digest)
	}
}

func TestCountersIgnoreFilter(t *testing.T) {
	state := sampleQueue()
	all := BuildQueueView(state, Filter{})
	filtered := BuildQueueView(state, Filter{States: []string{"queue"}, Search: "drama"})
	if got := ids(filtered.Items); !equalIDs(got, 3) {
		t.Fatalf("items = %v", got)
	}
	if filtered.Counters != all.Counters {
		t.Fatalf("counters changed with filter: %+v vs %+v", filtered.Counters, all.Counters)
	}
	if filtered.Digest == all.Digest {
		t.Fatal("digest should cover only listed items")
	}
	if len(filtered.Filters.States) != 1 || filtered.Filters.Search != "drama" {
		t.Fatalf("filter not echoed: %+v", filtered.Filters)
	}
}

func TestStateFilterIsCaseInsensitive(t *testing.T) {
	v := BuildQueueView(sampleQueue(), Filter{States: []string{"ENCODING", "complete"}})
	if got := ids(v.Items); !equalIDs(got, 1, 2) {
		t.Fatalf("items = %v", got)
	}
	v = BuildQueueView(sampleQueue(), Filter{States: []string{"bogus"}})
	if len(v.Items) != 0 {
		t.Fatalf("unknown state should match nothing, got %v", ids(v.Items))
	}
}

func TestSearchTargets(t *testing.T) {
	state := sampleQueue()
	v := BuildQueueView(state, Filter{Search: "NHK", SearchTargets: []SearchTarget{TargetFile}})
	if len(v.Items) != 0 {
		t.Fatalf("file-only search matched service: %v", ids(v.Items))
	}
	v = BuildQueueView(state, Filter{Search: "nhk", SearchTargets: []SearchTarget{TargetService}})
	if got := ids(v.Items); !equalIDs(got, 1, 4) {
		t.Fatalf("items = %v", got)
	}
	v = BuildQueueView(state, Filter{Search: "HEVC"})
	if got := ids(v.Items); !equalIDs(got, 1, 3) {
		t.Fatalf("items = %v", got)
	}
}

func TestHideOneSegFromFilterOrSetting(t *testing.T) {
	state := sampleQueue()
	v := BuildQueueView(state, Filter{HideOneSeg: true})
	if got := ids(v.Items); !equalIDs(got, 1, 2, 3) {
		t.Fatalf("items = %v", got)
	}
	state.HideOneSeg = true
	v = BuildQueueView(state, Filter{})
	if got := ids(v.Items); !equalIDs(got, 1, 2, 3) {
		t.Fatalf("setting should hide one-seg items, got %v", got)
	}
	if v.Counters.Failed != 1 {
		t.Fatalf("hidden items still count, got %+v", v.Counters)
	}
}

func TestDateRange(t *testing.T) {
	state := sampleQueue()
	from := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	v := BuildQueueView(state, Filter{DateFrom: &from})
	if got := ids(v.Items); !equalIDs(got, 2) {
		t.Fatalf("dateFrom items = %v", got)
	}
	to := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	v = BuildQueueView(state, Filter{DateTo: &to})
	if got := ids(v.Items); !equalIDs(got, 1) {
		t.Fatalf("dateTo items = %v", got)
	}
	// An unfinished job falls back to its start time.
	to = time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC)
	v = BuildQueueView(state, Filter{DateTo: &to})
	if got := ids(v.Items); !equalIDs(got, 1, 2) {
		t.Fatalf("dateTo fallback items = %v", got)
	}
}

func TestStateLabels(t *testing.T) {
	cases := []struct {
		job  model.Job
		want string
	}{
		{model.Job{State: model.StateQueued}, "Queued"},
		{model.Job{State: model.StateEncoding, Mode: model.ModeCMCheck, ConsoleID: 1}, "CM analysis → 2"},
		{model.Job{State: model.StateEncoding, Mode: model.ModeDrcsCheck}, "DRCS check → 1"},
		{model.Job{State: model.StateEncoding, ConsoleID: 3}, "Encoding → 4"},
		{model.Job{State: model.StatePreFailed}, "Failed"},
		{model.Job{State: model.StateLogoPending}, "Pending"},
		{model.Job{State: model.StateCanceled}, "Canceled"},
		{model.Job{State: model.StateComplete}, "Complete"},
		{model.Job{State: "Mystery"}, "Unknown"},
	}
	for _, tc := range cases {
		if got := StateLabel(tc.job); got != tc.want {
			t.Fatalf("StateLabel(%s/%s) = %q, want %q", tc.job.State, tc.job.Mode, got, tc.want)
		}
	}
}

func TestItemDerivedFields(t *testing.T) {
	eit := time.Date(2024, 1, 2, 21, 0, 0, 0, time.UTC)
	ts := time.Date(2023, 12, 31, 9, 0, 0, 0, time.UTC)
	job := model.Job{
		ID:           9,
		SrcPath:      "/rec/x.ts",
		DstPath:      "/out",
		ProfileName:  "stale",
		Profile:      &model.Profile{Name: "current"},
		State:        model.StatePreFailed,
		FailReason:   "Video is too small",
		TsTime:       ts,
		EITStartTime: eit,
	}
	item := Item(job)
	if item.EncodeStart != nil || item.EncodeFinish != nil {
		t.Fatalf("zero times should be nil: %+v", item)
	}
	if item.DisplayBroadcastTime != "2024/01/02" {
		t.Fatalf("broadcast time = %q", item.DisplayBroadcastTime)
	}
	if item.ProfileName != "current" || item.OutDir != "/out" || !item.IsTooSmall {
		t.Fatalf("unexpected item %+v", item)
	}
	job.EITStartTime = time.Time{}
	if got := Item(job).DisplayBroadcastTime; got != "2023/12/31" {
		t.Fatalf("ts fallback = %q", got)
	}
}

func TestDigestTracksChanges(t *testing.T) {
	state := sampleQueue()
	before := BuildQueueView(state, Filter{}).Digest
	if again := BuildQueueView(state, Filter{}).Digest; again != before {
		t.Fatal("digest is not deterministic")
	}
	state.Jobs[2].Priority = 5
	if after := BuildQueueView(state, Filter{}).Digest; after == before {
		t.Fatal("digest ignored a priority change")
	}
}

func TestParseSearchTargets(t *testing.T) {
	got, err := ParseSearchTargets(" File,profile ,")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != TargetFile || got[1] != TargetProfile {
		t.Fatalf("targets = %v", got)
	}
	if _, err := ParseSearchTargets("title"); err == nil {
		t.Fatal("expected error for unknown target")
	}
	if got, _ := ParseSearchTargets(""); got != nil {
		t.Fatalf("empty input should be nil, got %v", got)
	}
}

func TestBuildConsoleView(t *testing.T) {
	v := BuildConsoleView([]model.ConsoleState{
		{Slot: 2, Lines: []string{"c"}},
		{Slot: -1, Lines: []string{"adding"}},
		{Slot: 0, Lines: []string{"a"}},
	})
	if len(v.Slots) != 2 || v.Slots[0].Slot != 0 || v.Slots[1].Slot != 2 {
		t.Fatalf("slots = %+v", v.Slots)
	}
	if v.AddQueue == nil || v.AddQueue.Lines[0] != "adding" {
		t.Fatalf("add queue console = %+v", v.AddQueue)
	}
}
