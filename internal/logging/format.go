package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// valueText renders v without quoting.
func valueText(v slog.Value) string {
	switch v = v.Resolve(); v.Kind() {
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

// fieldText renders v for key=value output, quoting values that would
// otherwise be ambiguous.
func fieldText(v slog.Value) string {
	s := valueText(v)
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
