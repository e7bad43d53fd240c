package api

import (
	"fmt"
	"sort"

	"github.com/felixbrucker/chia-canary/internal/detector"
	"github.com/felixbrucker/chia-canary/internal/store"
)

// DiagnosticHint is one human-readable insight about a log's health.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level  string   `json:"level"`
	Title  string   `json:"title"`
	Detail string   `json:"detail"`
	Value  *float64 `json:"value,omitempty"`
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// computeDiagnostics derives hints from a log status, critical first.
func computeDiagnostics(st store.Status) []DiagnosticHint {
	var hints []DiagnosticHint

	switch st.States[detector.NameHeartbeat] {
	case detector.StateDegraded:
		detail := "The full node stopped reporting signage points. " +
			"Check that the node is synced and has peers."
		if st.LastHeartbeat != nil {
			detail = fmt.Sprintf("The last signage point was %d/64 at %s. ",
				st.LastHeartbeat.Number, st.LastHeartbeat.ReceivedAt.Format("2006-01-02 15:04:05")) + detail
		}
		hints = append(hints, DiagnosticHint{
			Key:    "signage_points",
			Level:  "critical",
			Title:  "No signage points",
			Detail: detail,
		})
	case detector.StateNotRunning:
		hints = append(hints, DiagnosticHint{
			Key:   "no_full_node",
			Level: "info",
			Title: "No full node seen",
			Detail: "No signage point has been logged yet. This is expected on a " +
				"harvester-only machine.",
		})
	}

	if st.States[detector.NamePlotCount] == detector.StateDegraded {
		v := float64(st.Plots)
		hints = append(hints, DiagnosticHint{
			Key:   "plots_missing",
			Level: "critical",
			Title: "Plots missing",
			Detail: fmt.Sprintf("The harvester currently reports %d plots, fewer than before. "+
				"A drive may have dropped out or been unmounted.", st.Plots),
			Value: &v,
		})
	}

	if st.States[detector.NameScanDuration] == detector.StateDegraded {
		v := st.ScanDuration
		hints = append(hints, DiagnosticHint{
			Key:   "slow_lookups",
			Level: "warning",
			Title: "Slow plot lookups",
			Detail: fmt.Sprintf("Plot lookups took %.3f sec. Slow lookups risk missing "+
				"proofs; look for a failing or overloaded drive.", st.ScanDuration),
			Value: &v,
		})
	}

	if st.DriveErrors > 0 {
		v := float64(st.DriveErrors)
		hints = append(hints, DiagnosticHint{
			Key:    "drive_errors",
			Level:  "warning",
			Title:  "Drive errors",
			Detail: fmt.Sprintf("%d drive(s) logged repeated plot file errors.", st.DriveErrors),
			Value:  &v,
		})
	}

	if st.Errors > 0 {
		v := float64(st.Errors)
		hints = append(hints, DiagnosticHint{
			Key:    "error_log",
			Level:  "info",
			Title:  "Error log entries",
			Detail: fmt.Sprintf("%d error log entries were reported since start.", st.Errors),
			Value:  &v,
		})
	}

	if len(hints) == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "healthy",
			Level:  "ok",
			Title:  "All clear",
			Detail: "Every detector reports normal operation.",
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank[hints[i].Level] < levelRank[hints[j].Level]
	})
	return hints
}
