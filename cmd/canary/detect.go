package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixbrucker/chia-canary/internal/config"
	"github.com/felixbrucker/chia-canary/internal/logfile"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "List the debug logs that would be watched",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(configPath); err != nil {
			return err
		}
		cfg, err := config.LoadOrCreate(configPath)
		if err != nil {
			return err
		}
		root, err := cfg.Root()
		if err != nil {
			return err
		}
		files, err := logfile.Detect(root, cfg.CoinDenylist)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("%w under %s", logfile.ErrNoLogFiles, root)
		}

		out := cmd.OutOrStdout()
		for _, f := range files {
			fmt.Fprintf(out, "%-12s %s\n", f.Name, f.Path)
		}
		return nil
	},
}
