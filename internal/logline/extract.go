package logline

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	scanDurationRE  = regexp.MustCompile(`Found ([0-9]*) proofs\. Time: ([0-9.]*) s`)
	totalPlotsRE    = regexp.MustCompile(`Total ([0-9]*) plots`)
	plotFileErrorRE = regexp.MustCompile(`^File: (.+)[/\\](plot.*\.plot).*$`)
	signagePointRE  = regexp.MustCompile(`(?:⏲️|.)[a-z A-Z,]* ([0-9]{1,2})/64[:,]\s*(?:CC:\s*)?([a-f0-9]+)[\w\s,:\d-]*RC(?:\shash)*:\s*([a-f0-9]+)`)
)

// ScanDuration returns the plot scan duration in seconds from a harvester
// "Found N proofs. Time: X s" message.
func ScanDuration(msg string) (float64, bool) {
	m := scanDurationRE.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	d, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, false
	}
	return d, true
}

// TotalPlots returns the plot count from a "Total N plots" message.
func TotalPlots(msg string) (int, bool) {
	m := totalPlotsRE.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// PlotFileError splits a "File: <dir>/<plot>.plot ..." error message into the
// directory holding the plot and the plot file name.
func PlotFileError(msg string) (dir, file string, ok bool) {
	m := plotFileErrorRE.FindStringSubmatch(msg)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// SignagePoint is a signage point announcement extracted from a full node
// INFO line.
type SignagePoint struct {
	Number int
	CCHash string
	RCHash string
}

// ExtractSignagePoint recognises the full node's "Finished signage point
// N/64" lines.
func ExtractSignagePoint(rec Record) (SignagePoint, bool) {
	if rec.Level != LevelInfo || !strings.Contains(rec.Module, "full_node") {
		return SignagePoint{}, false
	}
	m := signagePointRE.FindStringSubmatch(rec.Message)
	if m == nil {
		return SignagePoint{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return SignagePoint{}, false
	}
	return SignagePoint{Number: n, CCHash: m[2], RCHash: m[3]}, true
}
