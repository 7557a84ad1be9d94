package main

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"encmirror/internal/api"
)

type pageFlags struct {
	offset     int
	limit      int
	jsonOutput bool
}

func (f *pageFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.offset, "offset", 0, "Skip this many newer entries")
	cmd.Flags().IntVar(&f.limit, "limit", api.DefaultPageLimit, fmt.Sprintf("Entries per page (1-%d)", api.MaxPageLimit))
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Emit JSON instead of a table")
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Page through finished encodes and checks",
	}
	historyCmd.AddCommand(newEncodeHistoryCommand(ctx))
	historyCmd.AddCommand(newCheckHistoryCommand(ctx))
	return historyCmd
}

func newEncodeHistoryCommand(ctx *commandContext) *cobra.Command {
	var flags pageFlags
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Show encode history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			page, err := client.EncodeLogPage(cmd.Context(), flags.offset, flags.limit)
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if flags.jsonOutput {
				return writeJSON(cmd, page)
			}
			out := cmd.OutOrStdout()
			pal := newPalette(out)
			rows := make([][]string, 0, len(page.Items))
			for _, item := range page.Items {
				rows = append(rows, []string{
					historyTime(item.EncodeFinish),
					resultLabel(pal, item.Success, item.Reason),
					item.ServiceName,
					item.ProfileName,
					truncate(filepath.Base(item.SrcPath), 60),
				})
			}
			printPage(out, page.Total, page.Offset, len(rows), renderTable(
				[]string{"Finished", "Result", "Service", "Profile", "File"}, rows, nil))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newCheckHistoryCommand(ctx *commandContext) *cobra.Command {
	var flags pageFlags
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show CM and DRCS check history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			page, err := client.CheckLogPage(cmd.Context(), flags.offset, flags.limit)
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if flags.jsonOutput {
				return writeJSON(cmd, page)
			}
			out := cmd.OutOrStdout()
			pal := newPalette(out)
			rows := make([][]string, 0, len(page.Items))
			for _, item := range page.Items {
				rows = append(rows, []string{
					historyTime(item.CheckFinish),
					string(item.Type),
					resultLabel(pal, item.Success, item.Reason),
					item.ServiceName,
					truncate(filepath.Base(item.SrcPath), 60),
				})
			}
			printPage(out, page.Total, page.Offset, len(rows), renderTable(
				[]string{"Finished", "Type", "Result", "Service", "File"}, rows, nil))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func printPage(out io.Writer, total, offset, shown int, tableText string) {
	if shown == 0 {
		fmt.Fprintf(out, "No entries at offset %d (%d total)\n", offset, total)
		return
	}
	fmt.Fprintln(out, tableText)
	fmt.Fprintf(out, "Showing %d-%d of %d\n", offset+1, offset+shown, total)
}

func resultLabel(pal palette, success bool, reason string) string {
	if success {
		return pal.paint(toneOK, "OK")
	}
	if reason == "" {
		reason = "failed"
	}
	return pal.paint(toneError, truncate(reason, 40))
}

func historyTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}
