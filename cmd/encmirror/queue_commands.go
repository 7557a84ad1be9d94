package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"encmirror/internal/api"
	"encmirror/internal/model"
	"encmirror/internal/view"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the mirrored encode queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueViewsCommand(ctx))

	return queueCmd
}

type queueFilterFlags struct {
	states     []string
	search     string
	targets    string
	from       string
	to         string
	hideOneSeg bool
}

func (f *queueFilterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.states, "state", nil, "Only show jobs in these states (Queued, Encoding, LogoPending, Complete, Failed, PreFailed, Canceled)")
	cmd.Flags().StringVar(&f.search, "search", "", "Free-text search")
	cmd.Flags().StringVar(&f.targets, "target", "", "Comma-separated search targets: file, service, profile")
	cmd.Flags().StringVar(&f.from, "from", "", "Earliest date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&f.to, "to", "", "Latest date (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().BoolVar(&f.hideOneSeg, "hide-oneseg", false, "Hide trivially small recordings")
}

// apply overlays the flags the user set on base.
func (f *queueFilterFlags) apply(cmd *cobra.Command, base view.Filter) (view.Filter, error) {
	values := api.EncodeQueueFilter(base)
	set := func(name, key, value string) {
		if cmd.Flags().Changed(name) {
			values.Del(key)
			if strings.TrimSpace(value) != "" {
				values.Set(key, value)
			}
		}
	}
	if cmd.Flags().Changed("state") {
		values.Del("state")
		for _, state := range f.states {
			values.Add("state", state)
		}
	}
	set("search", "search", f.search)
	set("target", "searchTargets", f.targets)
	set("from", "dateFrom", f.from)
	set("to", "dateTo", f.to)
	set("hide-oneseg", "hideOneSeg", strconv.FormatBool(f.hideOneSeg))
	return api.ParseQueueFilter(values)
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var filterFlags queueFilterFlags
	var viewName string
	var saveName string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			views := openViewStore(ctx, cfg)

			var base view.Filter
			if name := strings.TrimSpace(viewName); name != "" {
				if base, err = views.get(name); err != nil {
					return err
				}
			}
			filter, err := filterFlags.apply(cmd, base)
			if err != nil {
				return err
			}
			if name := strings.TrimSpace(saveName); name != "" {
				if err := views.put(name, filter); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Saved view %q: %s\n", name, describeFilter(filter))
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Queue(cmd.Context(), filter)
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			if len(resp.Items) == 0 {
				fmt.Fprintln(out, "Queue is empty")
			} else {
				table := renderTable(
					[]string{"ID", "State", "File", "Service", "Profile", "Broadcast", "Priority"},
					buildQueueListRows(resp.Items, newPalette(out)),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
				)
				fmt.Fprintln(out, table)
			}
			fmt.Fprintln(out, formatCounters(resp.Counters))
			return nil
		},
	}

	filterFlags.register(cmd)
	cmd.Flags().StringVar(&viewName, "view", "", "Start from a saved view")
	cmd.Flags().StringVar(&saveName, "save", "", "Save the resulting filter under this name")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func buildQueueListRows(items []view.ItemView, pal palette) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		name := item.FileName
		if name == "" {
			name = item.SrcPath
		}
		failed := item.State == model.StateFailed || item.State == model.StatePreFailed
		active := item.State == model.StateEncoding
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			pal.jobState(item.StateLabel, failed, active),
			truncate(name, 60),
			item.ServiceName,
			item.ProfileName,
			item.DisplayBroadcastTime,
			strconv.Itoa(item.Priority),
		})
	}
	return rows
}

func formatCounters(c model.Counters) string {
	return fmt.Sprintf("Active %d · Encoding %d · Logo pending %d · Complete %d · Failed %d · Canceled %d",
		c.Active, c.Encoding, c.Pending, c.Complete, c.Failed, c.Canceled)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit || limit < 2 {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queue item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			item, err := client.QueueItem(cmd.Context(), id)
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if jsonOutput {
				return writeJSON(cmd, item)
			}
			out := cmd.OutOrStdout()
			rows := [][]string{
				{"ID", strconv.FormatInt(item.ID, 10)},
				{"State", item.StateLabel},
				{"Source", item.SrcPath},
				{"Output dir", item.OutDir},
				{"Service", item.ServiceName},
				{"Profile", item.ProfileName},
				{"Broadcast", item.DisplayBroadcastTime},
				{"Priority", strconv.Itoa(item.Priority)},
				{"Batch", yesNo(item.IsBatch)},
			}
			if item.FailReason != "" {
				rows = append(rows, []string{"Fail reason", item.FailReason})
			}
			if len(item.Tags) > 0 {
				rows = append(rows, []string{"Tags", strings.Join(item.Tags, ", ")})
			}
			fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON")
	return cmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.Queue(cmd.Context(), view.Filter{})
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			c := resp.Counters
			rows := [][]string{
				{"Active", strconv.Itoa(c.Active)},
				{"Encoding", strconv.Itoa(c.Encoding)},
				{"Logo pending", strconv.Itoa(c.Pending)},
				{"Complete", strconv.Itoa(c.Complete)},
				{"Failed", strconv.Itoa(c.Failed)},
				{"Canceled", strconv.Itoa(c.Canceled)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
			fmt.Fprintf(cmd.OutOrStdout(), "Version %d · digest %s\n", resp.Version, resp.Digest)
			return nil
		},
	}
}

func newQueueViewsCommand(ctx *commandContext) *cobra.Command {
	var removeName string

	cmd := &cobra.Command{
		Use:   "views",
		Short: "List or remove saved queue views",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			views := openViewStore(ctx, cfg)
			out := cmd.OutOrStdout()

			if name := strings.TrimSpace(removeName); name != "" {
				removed, err := views.remove(name)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("no saved view named %q", name)
				}
				fmt.Fprintf(out, "Removed view %q\n", name)
				return nil
			}

			list, err := views.list()
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No saved views")
				return nil
			}
			rows := make([][]string, 0, len(list))
			for _, v := range list {
				rows = append(rows, []string{v.Name, describeFilter(v.Filter)})
			}
			fmt.Fprintln(out, renderTable([]string{"Name", "Filter"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().StringVar(&removeName, "remove", "", "Delete the named view")
	return cmd
}

func parseJobID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid queue item id %q", raw)
	}
	return id, nil
}
