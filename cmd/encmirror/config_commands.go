package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"encmirror/internal/config"
	"encmirror/internal/fileutil"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage encmirror configuration",
	}
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(targetPath)
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			} else {
				expanded, err := config.ExpandPath(path)
				if err != nil {
					return err
				}
				path = expanded
			}

			if fileutil.Exists(path) && !overwrite {
				return fmt.Errorf("%s already exists (use --overwrite to replace it)", path)
			}

			if err := config.CreateSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination (default ~/.config/encmirror/config.toml)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := cfg.Encode()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if ctx.configExists {
				fmt.Fprintf(out, "# %s\n", ctx.configPath)
			} else {
				fmt.Fprintf(out, "# %s (not found, defaults shown)\n", ctx.configPath)
			}
			_, err = out.Write(data)
			return err
		},
	}
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and the directories it names",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			pal := newPalette(out)

			fmt.Fprintln(out, pal.statusLine("Config", toneOK, ctx.configPath))
			for _, dir := range []struct{ label, path string }{
				{"State dir", cfg.Paths.StateDir},
				{"Log dir", cfg.Paths.LogDir},
			} {
				kind, detail := toneOK, dir.path
				if info, err := os.Stat(dir.path); err != nil {
					kind, detail = toneWarn, dir.path+" (will be created)"
				} else if !info.IsDir() {
					kind, detail = toneError, dir.path+" is not a directory"
				}
				fmt.Fprintln(out, pal.statusLine(dir.label, kind, detail))
			}
			api := toneOK
			apiDetail := cfg.Paths.APIBind
			if apiDetail == "" {
				api, apiDetail = toneWarn, "disabled"
			}
			fmt.Fprintln(out, pal.statusLine("HTTP API", api, apiDetail))
			fmt.Fprintln(out, pal.statusLine("Ingest socket", toneOK, cfg.Paths.IngestSocket))
			return nil
		},
	}
}
