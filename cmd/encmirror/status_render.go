package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

type tone int

const (
	toneInfo tone = iota
	toneOK
	toneWarn
	toneError
)

var toneLabels = map[tone]string{
	toneInfo:  "INFO",
	toneOK:    "OK",
	toneWarn:  "WARN",
	toneError: "ERROR",
}

var toneColors = map[tone]string{
	toneInfo:  "\x1b[34m",
	toneOK:    "\x1b[32m",
	toneWarn:  "\x1b[33m",
	toneError: "\x1b[31m",
}

const (
	ansiReset  = "\x1b[0m"
	labelWidth = 20
)

// palette renders terminal text, adding ANSI colour only when the output
// is a terminal.
type palette struct {
	color bool
}

func newPalette(w io.Writer) palette {
	file, ok := w.(*os.File)
	if !ok {
		return palette{}
	}
	fd := file.Fd()
	return palette{color: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)}
}

func (p palette) paint(t tone, s string) string {
	if !p.color || s == "" {
		return s
	}
	return toneColors[t] + s + ansiReset
}

// statusLine renders "  Label:   [OK] message".
func (p palette) statusLine(label string, t tone, message string) string {
	badge := "[" + toneLabels[t] + "]"
	if message != "" {
		badge += " " + message
	}
	return p.paint(t, fmt.Sprintf("  %-*s %s", labelWidth, label+":", badge))
}

func (p palette) section(title string) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	return []string{p.paint(toneInfo, heading), p.paint(toneInfo, strings.Repeat("-", len(heading)))}
}

// jobState tints a queue state label: failures red, running jobs green.
func (p palette) jobState(label string, failed, active bool) string {
	switch {
	case failed:
		return p.paint(toneError, label)
	case active:
		return p.paint(toneOK, label)
	default:
		return label
	}
}
