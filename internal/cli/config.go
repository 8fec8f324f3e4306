// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/driveq/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change settings",
		Long: `Show or change settings.

Settings are read from ~/.driveq/config.toml (or config.yaml / config.json),
then .env files, then DRIVEQ_* environment variables, then flags. 'config
set' edits the file only.

Keys use dot notation, for example api.base_url or chat.stream. Run
'driveq config keys' for the full list.`,
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print results as JSON")

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(*cobra.Command, []string) error {
			if asJSON {
				return outputJSON(a.out, "config show", func() (any, error) {
					return a.cfg, nil
				})
			}
			fmt.Fprint(a.out, a.cfg.String())
			return nil
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(*cobra.Command, []string) error {
			p, err := a.configFile()
			if err != nil {
				return err
			}
			_, statErr := os.Stat(p)
			exists := statErr == nil
			if asJSON {
				return outputJSON(a.out, "config path", func() (any, error) {
					return map[string]any{"path": p, "exists": exists}, nil
				})
			}
			fmt.Fprintln(a.out, p)
			if !exists {
				fmt.Fprintln(a.errOut, MutedStyle.Render("(not created yet; run 'driveq config init')"))
			}
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(*cobra.Command, []string) error {
			p, err := a.configFile()
			if err != nil {
				return err
			}
			if _, err := os.Stat(p); err == nil && !force {
				return &UsageError{Err: fmt.Errorf("%s already exists (use --force to overwrite)", p)}
			}
			if err := config.EnsureDir(); err != nil {
				return err
			}
			if err := config.SaveTo(config.Default(), p); err != nil {
				return err
			}
			fmt.Fprintln(a.out, SuccessStyle.Render("✓ ")+"Wrote "+p)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	get := &cobra.Command{
		Use:   "get KEY",
		Short: "Print one effective setting",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(_ *cobra.Command, args []string) error {
			v, err := a.cfg.Get(args[0])
			if err != nil {
				return &UsageError{Err: err}
			}
			if asJSON {
				return outputJSON(a.out, "config get", func() (any, error) {
					return map[string]any{"key": args[0], "value": v}, nil
				})
			}
			fmt.Fprintln(a.out, v)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Change a setting in the config file",
		Example: `  driveq config set api.base_url http://localhost:8000
  driveq config set chat.stream true`,
		Args: usageArgs(cobra.ExactArgs(2)),
		RunE: func(_ *cobra.Command, args []string) error {
			key, value := strings.ToLower(args[0]), args[1]
			p, err := a.configFile()
			if err != nil {
				return err
			}
			cfg, err := config.ReadFile(p)
			if err != nil {
				return err
			}
			if err := cfg.Set(key, value); err != nil {
				return &UsageError{Err: err}
			}
			cfg.SetDefaults()
			if err := cfg.Validate(); err != nil {
				return &UsageError{Err: fmt.Errorf("invalid value: %w", err)}
			}
			if err := config.EnsureDir(); err != nil {
				return err
			}
			if err := config.SaveTo(cfg, p); err != nil {
				return err
			}
			v, _ := cfg.Get(key)
			fmt.Fprintf(a.out, "%s%s = %v\n", SuccessStyle.Render("✓ "), key, v)
			return nil
		},
	}

	keys := &cobra.Command{
		Use:   "keys",
		Short: "List every setting key",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(*cobra.Command, []string) error {
			for _, k := range config.AllKeys() {
				fmt.Fprintln(a.out, k)
			}
			return nil
		},
	}

	cmd.AddCommand(show, path, initCmd, get, set, keys)
	return cmd
}

// configFile is the file config commands read and write: --config when
// given, else the default location.
func (a *app) configFile() (string, error) {
	if a.flags.configPath != "" {
		return a.flags.configPath, nil
	}
	p, err := config.Path()
	if err != nil {
		return "", errors.New("cannot locate the config directory; set DRIVEQ_HOME")
	}
	return p, nil
}
