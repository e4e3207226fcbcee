package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-i2p/minthttp/lib/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a configuration file with default settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Validate and print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p := cfg.PoolConfig()
			o := cfg.TransportOptions()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pool: capacity=%d ttl=%s idle_ttl=%s acquire_timeout=%s usage_limit=%d\n",
				p.Capacity, p.TTL, p.IdleTTL, p.AcquireTimeout, p.UsageLimit)
			fmt.Fprintf(out, "client: open=%s write=%s read=%s tls=%s user_agent=%q\n",
				o.OpenTimeout, o.WriteTimeout, o.ReadTimeout, o.TLSTimeout, cfg.Client.UserAgent)
			fmt.Fprintf(out, "log: filter=%v params=%v\n", cfg.Log.FilterParams, cfg.Log.FilterParamsList)
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

// loadConfig loads the file named by --config, or defaults when unset.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.LoadConfig(path)
}
