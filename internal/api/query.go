package api

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"encmirror/internal/messages"
	"encmirror/internal/view"
)

const dayLayout = "2006-01-02"

// DefaultMessageMax is the page size used when a message query omits max.
const DefaultMessageMax = 50

// Paging bounds for /api/logs/*/page.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// ParsePage decodes offset and limit. A negative offset reads as 0 and limit
// is clamped to [1, MaxPageLimit]; only non-numeric values are rejected.
func ParsePage(values url.Values) (offset, limit int, err error) {
	offset, err = intParam(values, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	limit, err = intParam(values, "limit", DefaultPageLimit)
	if err != nil {
		return 0, 0, err
	}
	return max(offset, 0), min(max(limit, 1), MaxPageLimit), nil
}

// EncodePage renders offset and limit as query parameters.
func EncodePage(offset, limit int) url.Values {
	values := url.Values{}
	values.Set("offset", strconv.Itoa(offset))
	values.Set("limit", strconv.Itoa(limit))
	return values
}

func intParam(values url.Values, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, raw)
	}
	return n, nil
}

// EncodeQueueFilter renders f as /api/queue query parameters.
func EncodeQueueFilter(f view.Filter) url.Values {
	values := url.Values{}
	for _, state := range f.States {
		if strings.TrimSpace(state) != "" {
			values.Add("state", state)
		}
	}
	if strings.TrimSpace(f.Search) != "" {
		values.Set("search", f.Search)
	}
	if len(f.SearchTargets) > 0 {
		parts := make([]string, len(f.SearchTargets))
		for i, target := range f.SearchTargets {
			parts[i] = string(target)
		}
		values.Set("searchTargets", strings.Join(parts, ","))
	}
	if f.DateFrom != nil {
		values.Set("dateFrom", f.DateFrom.Format(time.RFC3339Nano))
	}
	if f.DateTo != nil {
		values.Set("dateTo", f.DateTo.Format(time.RFC3339Nano))
	}
	if f.HideOneSeg {
		values.Set("hideOneSeg", "true")
	}
	return values
}

// ParseQueueFilter decodes /api/queue query parameters. Repeated state
// parameters and comma-separated lists are both accepted.
func ParseQueueFilter(values url.Values) (view.Filter, error) {
	var f view.Filter
	for _, raw := range values["state"] {
		for _, state := range strings.Split(raw, ",") {
			if state = strings.TrimSpace(state); state != "" {
				f.States = append(f.States, state)
			}
		}
	}
	f.Search = strings.TrimSpace(values.Get("search"))

	for _, raw := range values["searchTargets"] {
		targets, err := view.ParseSearchTargets(raw)
		if err != nil {
			return view.Filter{}, err
		}
		f.SearchTargets = append(f.SearchTargets, targets...)
	}

	var err error
	if f.DateFrom, err = parseDate(values.Get("dateFrom")); err != nil {
		return view.Filter{}, fmt.Errorf("dateFrom: %w", err)
	}
	if f.DateTo, err = parseDate(values.Get("dateTo")); err != nil {
		return view.Filter{}, fmt.Errorf("dateTo: %w", err)
	}

	if raw := strings.TrimSpace(values.Get("hideOneSeg")); raw != "" {
		hide, err := strconv.ParseBool(raw)
		if err != nil {
			return view.Filter{}, fmt.Errorf("hideOneSeg: %w", err)
		}
		f.HideOneSeg = hide
	}
	return f, nil
}

func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(dayLayout, raw, time.Local)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", raw)
	}
	return &t, nil
}

// MessageQuery selects a page of operation messages.
type MessageQuery struct {
	Since  uint64
	Filter messages.Filter
	Max    int
}

// EncodeMessageQuery renders q as /api/messages/changes query parameters.
func EncodeMessageQuery(q MessageQuery) url.Values {
	values := url.Values{}
	values.Set("since", strconv.FormatUint(q.Since, 10))
	if q.Filter.Page != "" {
		values.Set("page", q.Filter.Page)
	}
	if q.Filter.RequestID != "" {
		values.Set("requestId", q.Filter.RequestID)
	}
	if len(q.Filter.Levels) > 0 {
		parts := make([]string, len(q.Filter.Levels))
		for i, level := range q.Filter.Levels {
			parts[i] = string(level)
		}
		values.Set("levels", strings.Join(parts, ","))
	}
	if q.Max > 0 {
		values.Set("max", strconv.Itoa(q.Max))
	}
	return values
}

// ParseMessageQuery decodes /api/messages/changes parameters. since defaults
// to 0 and max to DefaultMessageMax.
func ParseMessageQuery(values url.Values) (MessageQuery, error) {
	q := MessageQuery{Max: DefaultMessageMax}
	if raw := strings.TrimSpace(values.Get("since")); raw != "" {
		since, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return MessageQuery{}, fmt.Errorf("since: %w", err)
		}
		q.Since = since
	}
	if raw := strings.TrimSpace(values.Get("max")); raw != "" {
		max, err := strconv.Atoi(raw)
		if err != nil || max <= 0 {
			return MessageQuery{}, fmt.Errorf("max: invalid value %q", raw)
		}
		q.Max = max
	}
	q.Filter.Page = strings.TrimSpace(values.Get("page"))
	q.Filter.RequestID = strings.TrimSpace(values.Get("requestId"))
	for _, part := range strings.Split(values.Get("levels"), ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		q.Filter.Levels = append(q.Filter.Levels, messages.Level(part))
	}
	return q, nil
}

// ParseSince decodes the required since parameter of /api/queue/changes.
func ParseSince(values url.Values) (uint64, error) {
	raw := strings.TrimSpace(values.Get("since"))
	if raw == "" {
		return 0, errors.New("since is required")
	}
	since, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("since: invalid value %q", raw)
	}
	return since, nil
}
