package api

import (
	"net/url"
	"reflect"
	"testing"
	"time"

	"encmirror/internal/messages"
	"encmirror/internal/view"
)

func TestQueueFilterRoundTrip(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)
	want := view.Filter{
		States:        []string{"Queued", "Failed"},
		Search:        "news",
		SearchTargets: []view.SearchTarget{view.TargetFile, view.TargetService},
		DateFrom:      &from,
		DateTo:        &to,
		HideOneSeg:    true,
	}

	got, err := ParseQueueFilter(EncodeQueueFilter(want))
	if err != nil {
		t.Fatalf("ParseQueueFilter: %v", err)
	}
	if !got.DateFrom.Equal(from) || !got.DateTo.Equal(to) {
		t.Fatalf("dates changed: %v %v", got.DateFrom, got.DateTo)
	}
	got.DateFrom, got.DateTo = want.DateFrom, want.DateTo
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("filter mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestParseQueueFilterAcceptsCalendarDays(t *testing.T) {
	values := url.Values{"dateFrom": {"2024-03-01"}, "state": {"queued,failed"}}
	f, err := ParseQueueFilter(values)
	if err != nil {
		t.Fatalf("ParseQueueFilter: %v", err)
	}
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.Local)
	if f.DateFrom == nil || !f.DateFrom.Equal(want) {
		t.Fatalf("unexpected dateFrom %v", f.DateFrom)
	}
	if !reflect.DeepEqual(f.States, []string{"queued", "failed"}) {
		t.Fatalf("unexpected states %v", f.States)
	}
}

func TestParseQueueFilterRejectsBadInput(t *testing.T) {
	cases := []url.Values{
		{"dateFrom": {"yesterday"}},
		{"dateTo": {"2024-13-40"}},
		{"hideOneSeg": {"maybe"}},
		{"searchTargets": {"file,title"}},
	}
	for _, values := range cases {
		if _, err := ParseQueueFilter(values); err == nil {
			t.Fatalf("expected error for %v", values)
		}
	}
}

func TestParseQueueFilterEmpty(t *testing.T) {
	f, err := ParseQueueFilter(url.Values{})
	if err != nil {
		t.Fatalf("ParseQueueFilter: %v", err)
	}
	if !reflect.DeepEqual(f, view.Filter{}) {
		t.Fatalf("expected zero filter, got %+v", f)
	}
	if len(EncodeQueueFilter(view.Filter{})) != 0 {
		t.Fatal("zero filter should encode to no parameters")
	}
}

func TestMessageQueryRoundTrip(t *testing.T) {
	want := MessageQuery{
		Since: 17,
		Filter: messages.Filter{
			Page:      "queue",
			RequestID: "abc",
			Levels:    []messages.Level{messages.LevelError, messages.LevelInfo},
		},
		Max: 20,
	}
	got, err := ParseMessageQuery(EncodeMessageQuery(want))
	if err != nil {
		t.Fatalf("ParseMessageQuery: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("query mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestParseMessageQueryDefaults(t *testing.T) {
	q, err := ParseMessageQuery(url.Values{"levels": {" ERROR , "}})
	if err != nil {
		t.Fatalf("ParseMessageQuery: %v", err)
	}
	if q.Since != 0 || q.Max != DefaultMessageMax {
		t.Fatalf("unexpected defaults %+v", q)
	}
	if len(q.Filter.Levels) != 1 || q.Filter.Levels[0] != messages.LevelError {
		t.Fatalf("unexpected levels %v", q.Filter.Levels)
	}
	for _, bad := range []url.Values{{"since": {"-1"}}, {"max": {"0"}}, {"max": {"x"}}} {
		if _, err := ParseMessageQuery(bad); err == nil {
			t.Fatalf("expected error for %v", bad)
		}
	}
}

func TestParseSince(t *testing.T) {
	if _, err := ParseSince(url.Values{}); err == nil {
		t.Fatal("expected error for missing since")
	}
	if _, err := ParseSince(url.Values{"since": {"abc"}}); err == nil {
		t.Fatal("expected error for bad since")
	}
	since, err := ParseSince(url.Values{"since": {"42"}})
	if err != nil || since != 42 {
		t.Fatalf("ParseSince = %d, %v", since, err)
	}
}

func TestParsePageClamps(t *testing.T) {
	cases := []struct {
		values        url.Values
		offset, limit int
	}{
		{url.Values{}, 0, DefaultPageLimit},
		{url.Values{"offset": {"-5"}, "limit": {"0"}}, 0, 1},
		{url.Values{"offset": {"30"}, "limit": {"1000"}}, 30, MaxPageLimit},
		{url.Values{"offset": {" 7 "}, "limit": {"25"}}, 7, 25},
	}
	for _, tc := range cases {
		offset, limit, err := ParsePage(tc.values)
		if err != nil {
			t.Fatalf("ParsePage(%v): %v", tc.values, err)
		}
		if offset != tc.offset || limit != tc.limit {
			t.Fatalf("ParsePage(%v) = %d, %d; want %d, %d", tc.values, offset, limit, tc.offset, tc.limit)
		}
	}
	for _, bad := range []url.Values{{"offset": {"x"}}, {"limit": {"1.5"}}} {
		if _, _, err := ParsePage(bad); err == nil {
			t.Fatalf("expected error for %v", bad)
		}
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page := Paginate(items, 1, 2)
	if page.Total != 5 || page.Offset != 1 || page.Limit != 2 || !reflect.DeepEqual(page.Items, []int{2, 3}) {
		t.Fatalf("middle page = %+v", page)
	}
	page = Paginate(items, 4, 50)
	if !reflect.DeepEqual(page.Items, []int{5}) {
		t.Fatalf("tail page = %+v", page)
	}
	page = Paginate(items, 9, 2)
	if page.Offset != 5 || page.Items == nil || len(page.Items) != 0 {
		t.Fatalf("page past the end = %+v", page)
	}
	if page := Paginate[int](nil, 0, 10); page.Total != 0 || page.Items == nil {
		t.Fatalf("empty page = %+v", page)
	}
}
