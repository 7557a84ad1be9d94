package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	previewCmd := &cobra.Command{
		Use:   "preview",
		Short: "Grab frames from a queued recording",
	}
	previewCmd.AddCommand(newPreviewCreateCommand(ctx))
	previewCmd.AddCommand(newPreviewFrameCommand(ctx))
	previewCmd.AddCommand(newPreviewRemoveCommand(ctx))
	return previewCmd
}

func newPreviewCreateCommand(ctx *commandContext) *cobra.Command {
	var serviceID int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "create <job-id>",
		Short: "Open a preview session for a queue item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			session, err := client.CreatePreview(cmd.Context(), jobID, serviceID)
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if jsonOutput {
				return writeJSON(cmd, session)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s for job %d (%s)\n", session.SessionID, session.JobID, session.Path)
			return nil
		},
	}
	cmd.Flags().IntVar(&serviceID, "service", 0, "Service id for multi-service recordings")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON")
	return cmd
}

func newPreviewFrameCommand(ctx *commandContext) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "frame <session-id> <position>",
		Short: "Save the PNG frame at a position between 0 and 1",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pos, err := strconv.ParseFloat(strings.TrimSpace(args[1]), 64)
			if err != nil || pos < 0 || pos > 1 {
				return fmt.Errorf("position must be a number between 0 and 1, got %q", args[1])
			}
			if strings.TrimSpace(outPath) == "" {
				outPath = fmt.Sprintf("frame-%s-%03d.png", args[0], int(pos*1000))
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			frame, err := client.PreviewFrame(cmd.Context(), args[0], pos)
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if err := os.WriteFile(outPath, frame, 0o644); err != nil {
				return fmt.Errorf("write frame: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", outPath, len(frame))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default frame-<session>-<pos>.png)")
	return cmd
}

func newPreviewRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <session-id>",
		Short: "Close a preview session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			removed, err := client.RemovePreview(cmd.Context(), args[0])
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s closed\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s was not open\n", args[0])
			}
			return nil
		},
	}
}
