package view

import (
	"fmt"
	"strings"
	"time"

	"encmirror/internal/model"
)

// SearchTarget names a job field free-text search may match.
type SearchTarget string

const (
	TargetFile    SearchTarget = "file"
	TargetService SearchTarget = "service"
	TargetProfile SearchTarget = "profile"
)

// ParseSearchTargets parses a comma-separated target list. Empty input
// yields nil, which searches every target.
func ParseSearchTargets(value string) ([]SearchTarget, error) {
	var out []SearchTarget
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		switch target := SearchTarget(part); target {
		case TargetFile, TargetService, TargetProfile:
			out = append(out, target)
		default:
			return nil, fmt.Errorf("unknown search target %q", part)
		}
	}
	return out, nil
}

// Filter narrows the queue list. The zero Filter matches every job.
type Filter struct {
	States        []string       `json:"states,omitempty"`
	Search        string         `json:"search,omitempty"`
	SearchTargets []SearchTarget `json:"searchTargets,omitempty"`
	DateFrom      *time.Time     `json:"dateFrom,omitempty"`
	DateTo        *time.Time     `json:"dateTo,omitempty"`
	HideOneSeg    bool           `json:"hideOneSeg,omitempty"`
}

// QueueView is the materialized queue list.
type QueueView struct {
	Version  uint64         `json:"version"`
	Digest   string         `json:"digest"`
	Items    []ItemView     `json:"items"`
	Counters model.Counters `json:"counters"`
	Filters  Filter         `json:"filters"`
}

// Visible returns the jobs eligible for any view: those with a source path.
func Visible(jobs []model.Job) []model.Job {
	out := make([]model.Job, 0, len(jobs))
	for _, job := range jobs {
		if strings.TrimSpace(job.SrcPath) != "" {
			out = append(out, job)
		}
	}
	return out
}

// BuildQueueView filters state.Jobs. Counters always cover every visible job
// so totals do not change as the user narrows the list; the digest covers
// only the jobs listed.
func BuildQueueView(state model.QueueState, filter Filter) QueueView {
	visible := Visible(state.Jobs)
	match := newMatcher(filter, state.HideOneSeg)

	listed := make([]model.Job, 0, len(visible))
	for _, job := range visible {
		if match.matches(job) {
			listed = append(listed, job)
		}
	}

	counters := model.CountJobs(visible)
	return QueueView{
		Version:  state.Version,
		Digest:   Digest(counters, listed),
		Items:    Items(listed),
		Counters: counters,
		Filters:  filter,
	}
}

type matcher struct {
	hideOneSeg bool
	states     map[string]struct{}
	search     string
	file       bool
	service    bool
	profile    bool
	from, to   *time.Time
}

func newMatcher(f Filter, settingHidesOneSeg bool) matcher {
	m := matcher{
		hideOneSeg: f.HideOneSeg || settingHidesOneSeg,
		search:     strings.ToLower(strings.TrimSpace(f.Search)),
		from:       f.DateFrom,
		to:         f.DateTo,
	}
	if len(f.States) > 0 {
		m.states = make(map[string]struct{}, len(f.States))
		for _, s := range f.States {
			if parsed, ok := model.ParseState(s); ok {
				s = string(parsed)
			}
			m.states[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
		}
	}
	if len(f.SearchTargets) == 0 {
		m.file, m.service, m.profile = true, true, true
	}
	for _, target := range f.SearchTargets {
		switch SearchTarget(strings.ToLower(string(target))) {
		case TargetFile:
			m.file = true
		case TargetService:
			m.service = true
		case TargetProfile:
			m.profile = true
		}
	}
	return m
}

func (m matcher) matches(job model.Job) bool {
	if m.hideOneSeg && job.IsTooSmall() {
		return false
	}
	if m.states != nil {
		if _, ok := m.states[strings.ToLower(string(job.State))]; !ok {
			return false
		}
	}
	if m.search != "" && !m.matchesSearch(job) {
		return false
	}
	if m.from != nil {
		if job.EncodeStart.IsZero() || job.EncodeStart.Before(*m.from) {
			return false
		}
	}
	if m.to != nil {
		end := job.EncodeFinish
		if end.IsZero() {
			end = job.EncodeStart
		}
		if end.IsZero() || end.After(*m.to) {
			return false
		}
	}
	return true
}

func (m matcher) matchesSearch(job model.Job) bool {
	contains := func(field string) bool {
		return field != "" && strings.Contains(strings.ToLower(field), m.search)
	}
	return (m.file && contains(job.FileName)) ||
		(m.service && contains(job.ServiceName)) ||
		(m.profile && contains(job.DisplayProfileName()))
}
