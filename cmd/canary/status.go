package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/felixbrucker/chia-canary/internal/config"
	"github.com/felixbrucker/chia-canary/internal/scraper"
)

var (
	statusURL     string
	statusTimeout time.Duration

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the detector states of a running canary",
		Long: `status scrapes the /metrics endpoint of a running canary and prints
the state of every detector per log. It exits non-zero when any log is
degraded.`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
)

func init() {
	statusCmd.Flags().StringVar(&statusURL, "url",
		fmt.Sprintf("http://localhost:%d/metrics", config.DefaultHTTPPort), "metrics endpoint of the canary")
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 10*time.Second, "scrape timeout")
}

func runStatus(cmd *cobra.Command, args []string) error {
	logs, err := scraper.New(statusURL, statusTimeout).Scrape(cmd.Context())
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no logs reported")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOG\tSTATE\tPLOTS\tEVENTS\tDETECTORS")
	degraded := 0
	for _, l := range logs {
		state := "healthy"
		if l.Degraded() {
			state = "degraded"
			degraded++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			l.Log, state,
			humanize.Comma(int64(l.Plots)),
			humanize.Comma(int64(l.TotalEvents())),
			detectors(l))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if degraded > 0 {
		return fmt.Errorf("%d of %d logs degraded", degraded, len(logs))
	}
	return nil
}

func detectors(l scraper.LogStatus) string {
	names := make([]string, 0, len(l.States))
	for name := range l.States {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+string(l.States[name]))
	}
	return strings.Join(parts, " ")
}
