package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"encmirror/internal/api"
	"encmirror/internal/changelog"
	"encmirror/internal/event"
	"encmirror/internal/messages"
	"encmirror/internal/model"
	"encmirror/internal/replica"
	"encmirror/internal/view"
)

func newChangesCommand(ctx *commandContext) *cobra.Command {
	var since uint64
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Show queue changes after a version",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			changes, err := client.Changes(cmd.Context(), since)
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if jsonOutput {
				return writeJSON(cmd, changes)
			}
			out := cmd.OutOrStdout()
			if changes.FullSyncRequired {
				fmt.Fprintf(out, "Version %d is outside the retained history; reload the queue (current version %d)\n", since, changes.ToVersion)
				return nil
			}
			if len(changes.Changes) == 0 {
				fmt.Fprintf(out, "No changes since version %d\n", since)
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Version", "Change", "Job", "Detail"},
				buildChangeRows(changes.Changes),
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "Now at version %d · %s\n", changes.ToVersion, formatCounters(changes.Counters))
			return nil
		},
	}
	cmd.Flags().Uint64Var(&since, "since", 0, "Version the caller already has")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON")
	return cmd
}

func buildChangeRows(records []changelog.Record) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		id := ""
		if rec.Change.ID != 0 {
			id = strconv.FormatInt(rec.Change.ID, 10)
		}
		var detail string
		switch {
		case rec.Change.Job != nil:
			id = strconv.FormatInt(rec.Change.Job.ID, 10)
			detail = fmt.Sprintf("%s %s", rec.Change.Job.State, truncate(rec.Change.Job.SrcPath, 50))
		case rec.Change.Type == event.UpdateMove:
			detail = fmt.Sprintf("to position %d", rec.Change.Position)
		}
		rows = append(rows, []string{strconv.FormatUint(rec.Version, 10), string(rec.Change.Type), id, detail})
	}
	return rows
}

func newConsoleCommand(ctx *commandContext) *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "console [slot]",
		Short: "Show encoder console output",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			consoles, err := client.Console(cmd.Context())
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			all := consoles.Slots
			if consoles.AddQueue != nil {
				all = append(all, *consoles.AddQueue)
			}
			if len(args) == 1 {
				slot, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid console slot %q", args[0])
				}
				all = filterSlot(all, slot)
				if len(all) == 0 {
					return fmt.Errorf("console slot %d not found", slot)
				}
			}

			out := cmd.OutOrStdout()
			pal := newPalette(out)
			for i, c := range all {
				if i > 0 {
					fmt.Fprintln(out)
				}
				for _, line := range pal.section(consoleTitle(c)) {
					fmt.Fprintln(out, line)
				}
				text := c.Lines
				if lines > 0 && len(text) > lines {
					text = text[len(text)-lines:]
				}
				for _, line := range text {
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Lines per slot (0 for all)")
	return cmd
}

func filterSlot(consoles []model.ConsoleState, slot int) []model.ConsoleState {
	for _, c := range consoles {
		if c.Slot == slot {
			return []model.ConsoleState{c}
		}
	}
	return nil
}

func consoleTitle(c model.ConsoleState) string {
	if c.Slot == view.AddQueueSlot {
		return "Add queue"
	}
	title := fmt.Sprintf("Slot %d", c.Slot)
	if c.Phase != "" {
		title += " · " + c.Phase
	}
	return title
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration
	var filterFlags queueFilterFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep a local replica of the queue and print it whenever it changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := filterFlags.apply(cmd, view.Filter{})
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			rep, err := replica.New(replica.Options{Source: client, Logger: ctx.logger()})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			pal := newPalette(out)
			lastDigest := ""
			err = rep.Run(cmd.Context(), interval, func(result replica.SyncResult) {
				v := rep.View(filter, filter.HideOneSeg)
				if v.Digest == lastDigest {
					return
				}
				lastDigest = v.Digest
				mode := "incremental"
				if result.FullSync {
					mode = "full"
				}
				fmt.Fprintf(out, "\n%s version %d (%s sync)\n", time.Now().Format("15:04:05"), v.Version, mode)
				if len(v.Items) > 0 {
					fmt.Fprintln(out, renderTable(
						[]string{"ID", "State", "File", "Service", "Profile", "Broadcast", "Priority"},
						buildQueueListRows(v.Items, pal),
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
					))
				}
				fmt.Fprintln(out, formatCounters(v.Counters))
			})
			if err != nil && cmd.Context().Err() != nil {
				return nil
			}
			return ctx.wrapAPIError(err)
		},
	}
	filterFlags.register(cmd)
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Poll interval")
	return cmd
}

func newMessagesCommand(ctx *commandContext) *cobra.Command {
	var since uint64
	var follow bool
	var levels []string
	var requestID string
	var page string
	var limit int

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Show operation result messages from the encode server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			query := api.MessageQuery{
				Since: since,
				Max:   limit,
				Filter: messages.Filter{
					Page:      strings.TrimSpace(page),
					RequestID: strings.TrimSpace(requestID),
				},
			}
			for _, lvl := range levels {
				query.Filter.Levels = append(query.Filter.Levels, messages.Level(strings.ToLower(strings.TrimSpace(lvl))))
			}

			out := cmd.OutOrStdout()
			pal := newPalette(out)
			for {
				changes, err := client.Messages(cmd.Context(), query, follow)
				if err != nil {
					if follow && cmd.Context().Err() != nil {
						return nil
					}
					return ctx.wrapAPIError(err)
				}
				if changes.FullSyncRequired {
					fmt.Fprintf(cmd.ErrOrStderr(), "Messages after %d were evicted; showing the newest\n", query.Since)
				}
				for _, msg := range changes.Items {
					fmt.Fprintln(out, formatMessage(msg, pal))
				}
				if changes.ToID > query.Since {
					query.Since = changes.ToID
				}
				if !follow {
					return nil
				}
			}
		},
	}
	cmd.Flags().Uint64Var(&since, "since", 0, "Only messages after this id")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep waiting for new messages")
	cmd.Flags().StringSliceVar(&levels, "level", nil, "Only these levels (info, error)")
	cmd.Flags().StringVar(&requestID, "request-id", "", "Only messages for this command request")
	cmd.Flags().StringVar(&page, "page", "", "Only messages for this page")
	cmd.Flags().IntVar(&limit, "max", api.DefaultMessageMax, "Maximum messages per fetch")
	return cmd
}

func formatMessage(msg messages.Message, pal palette) string {
	level := strings.ToUpper(string(msg.Level))
	line := fmt.Sprintf("#%d %s %-5s %s", msg.ID, msg.Time.Local().Format("2006-01-02 15:04:05"), level, msg.Message)
	if msg.RequestID != "" {
		line += " (request " + msg.RequestID + ")"
	}
	if msg.Level == messages.LevelError {
		return pal.paint(toneError, line)
	}
	return line
}
