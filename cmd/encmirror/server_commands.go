package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"encmirror/internal/event"
)

// pauseRequest is the body the encode server expects for pause and resume.
type pauseRequest struct {
	IsQueue bool `json:"isQueue"`
	Index   int  `json:"index"`
	Pause   bool `json:"pause"`
}

func newServerCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newPauseCommand(ctx, "pause", "Pause the encode queue or one encoder slot", true),
		newPauseCommand(ctx, "resume", "Resume the encode queue or one encoder slot", false),
		newSimpleCommand(ctx, "cancel-add", "Cancel the running add-queue scan", event.VerbCancelAdd),
		newSimpleCommand(ctx, "end-server", "Ask the encode server to shut down", event.VerbEndServer),
		newSimpleCommand(ctx, "cancel-sleep", "Cancel a pending post-encode sleep or shutdown", event.VerbCancelSleep),
		newRawCommand(ctx),
	}
}

func newPauseCommand(ctx *commandContext, use, short string, pause bool) *cobra.Command {
	var slot int
	var requestID string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := pauseRequest{IsQueue: true, Pause: pause}
			if cmd.Flags().Changed("slot") {
				if slot < 0 {
					return fmt.Errorf("slot must be zero or greater, got %d", slot)
				}
				req = pauseRequest{Index: slot, Pause: pause}
			}
			body, err := json.Marshal(req)
			if err != nil {
				return err
			}
			return sendCommand(cmd, ctx, event.VerbPause, body, requestID)
		},
	}
	cmd.Flags().IntVar(&slot, "slot", 0, "Encoder slot index (default: the whole queue)")
	cmd.Flags().StringVar(&requestID, "request-id", "", "Correlation id for the resulting message")
	return cmd
}

func newSimpleCommand(ctx *commandContext, use, short string, verb event.Verb) *cobra.Command {
	var requestID string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(cmd, ctx, verb, []byte("{}"), requestID)
		},
	}
	cmd.Flags().StringVar(&requestID, "request-id", "", "Correlation id for the resulting message")
	return cmd
}

func newRawCommand(ctx *commandContext) *cobra.Command {
	var requestID string

	verbs := make([]string, 0, len(event.Verbs()))
	for _, v := range event.Verbs() {
		verbs = append(verbs, string(v))
	}

	cmd := &cobra.Command{
		Use:   "command <verb> [json-body]",
		Short: "Forward an arbitrary command to the encode server",
		Long:  "Forward a command to the encode server. Known verbs: " + strings.Join(verbs, ", "),
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			verb, err := event.ParseVerb(args[0])
			if err != nil {
				return err
			}
			body := []byte("{}")
			if len(args) == 2 {
				body = []byte(args[1])
				if !json.Valid(body) {
					return fmt.Errorf("command body is not valid JSON")
				}
			}
			return sendCommand(cmd, ctx, verb, body, requestID)
		},
	}
	cmd.Flags().StringVar(&requestID, "request-id", "", "Correlation id for the resulting message")
	return cmd
}

func sendCommand(cmd *cobra.Command, ctx *commandContext, verb event.Verb, body []byte, requestID string) error {
	client, err := ctx.client()
	if err != nil {
		return err
	}
	resp, err := client.Command(cmd.Context(), verb, body, strings.TrimSpace(requestID))
	if err != nil {
		return ctx.wrapAPIError(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Sent %s (request %s)\n", resp.Verb, resp.RequestID)
	return nil
}
