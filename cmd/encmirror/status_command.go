package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"encmirror/internal/api"
	"encmirror/internal/model"
)

type statusReport struct {
	Health api.HealthResponse `json:"health"`
	System api.SystemResponse `json:"system"`
	Disks  []model.DiskItem   `json:"disks,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, encode server, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			health, err := client.Health(cmd.Context())
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			system, err := client.System(cmd.Context())
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			// Disk figures are informational; a probe failure only hides them.
			var disks []model.DiskItem
			if resp, err := client.Disks(cmd.Context()); err == nil {
				disks = resp.Items
			}
			if jsonOutput {
				return writeJSON(cmd, statusReport{Health: health, System: system, Disks: disks})
			}

			out := cmd.OutOrStdout()
			pal := newPalette(out)
			lines := renderStatus(health, system, pal)
			lines = append(lines, renderDisks(disks, pal)...)
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of text")
	return cmd
}

func renderStatus(health api.HealthResponse, system api.SystemResponse, pal palette) []string {
	lines := pal.section("System")
	lines = append(lines, pal.statusLine("Daemon", toneOK, fmt.Sprintf("queue version %d", health.Version)))
	if health.Connected {
		server := strings.TrimSpace(system.ServerInfo.HostName)
		if server == "" {
			server = "connected"
		}
		lines = append(lines, pal.statusLine("Encode server", toneOK, server))
	} else {
		lines = append(lines, pal.statusLine("Encode server", toneWarn, "not connected"))
	}

	schedKind := toneInfo
	switch {
	case system.State.Running && !system.State.Suspend:
		schedKind = toneOK
	case system.State.Suspend || system.State.ScheduledSuspend:
		schedKind = toneWarn
	}
	schedMsg := system.State.RunningLabel()
	if system.State.Running && system.State.Progress > 0 {
		schedMsg = fmt.Sprintf("%s (%.0f%%)", schedMsg, system.State.Progress*100)
	}
	lines = append(lines, pal.statusLine("Scheduler", schedKind, schedMsg))
	if system.CurrentLogPath != "" {
		lines = append(lines, pal.statusLine("Current log", toneInfo, system.CurrentLogPath))
	}

	lines = append(lines, "")
	lines = append(lines, pal.section("Queue")...)
	c := system.Counters
	lines = append(lines,
		pal.statusLine("Active", toneInfo, fmt.Sprintf("%d", c.Active)),
		pal.statusLine("Encoding", toneInfo, fmt.Sprintf("%d", c.Encoding)),
		pal.statusLine("Logo pending", toneInfo, fmt.Sprintf("%d", c.Pending)),
		pal.statusLine("Complete", toneInfo, fmt.Sprintf("%d", c.Complete)),
	)
	failedKind := toneInfo
	if c.Failed > 0 {
		failedKind = toneError
	}
	lines = append(lines,
		pal.statusLine("Failed", failedKind, fmt.Sprintf("%d", c.Failed)),
		pal.statusLine("Canceled", toneInfo, fmt.Sprintf("%d", c.Canceled)),
	)

	if last := system.LastOperation; last != nil && last.Result.Message != "" {
		kind := toneOK
		if last.Result.IsFailed {
			kind = toneError
		}
		lines = append(lines, "")
		lines = append(lines, pal.statusLine("Last operation", kind, last.Result.Message))
	}

	if len(health.Dependencies) > 0 {
		lines = append(lines, "")
		lines = append(lines, pal.section("Preview tools")...)
		for _, dep := range health.Dependencies {
			kind, msg := toneOK, dep.Path
			if !dep.Available {
				kind = toneWarn
				if !dep.Optional {
					kind = toneError
				}
				msg = dep.Detail
			}
			lines = append(lines, pal.statusLine(dep.Name, kind, msg))
		}
	}
	return lines
}

// renderDisks reports free space per volume, warning below 10%.
func renderDisks(disks []model.DiskItem, pal palette) []string {
	if len(disks) == 0 {
		return nil
	}
	lines := append([]string{""}, pal.section("Disks")...)
	for _, disk := range disks {
		kind := toneOK
		if disk.Capacity > 0 && disk.Free*10 < disk.Capacity {
			kind = toneWarn
		}
		lines = append(lines, pal.statusLine(disk.Path, kind,
			fmt.Sprintf("%s free of %s", formatBytes(disk.Free), formatBytes(disk.Capacity))))
	}
	return lines
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	value, suffix := float64(n), "KMGTPE"
	i := -1
	for value >= unit && i < len(suffix)-1 {
		value /= unit
		i++
	}
	return fmt.Sprintf("%.1f %ciB", value, suffix[i])
}
