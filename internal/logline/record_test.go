package logline

import (
	"testing"
	"time"
)

func TestParse_Valid(t *testing.T) {
	line := "2021-06-01T12:00:01.250 harvester chia.harvester.harvester: INFO     1 plots were eligible for farming 3fa2... Found 0 proofs. Time: 0.41245 s. Total 42 plots\n"
	rec, ok := ParseInLocation(line, time.UTC)
	if !ok {
		t.Fatal("Parse returned ok=false for a valid line")
	}
	want := time.Date(2021, 6, 1, 12, 0, 1, 250_000_000, time.UTC)
	if !rec.Time.Equal(want) {
		t.Errorf("Time = %v, want %v", rec.Time, want)
	}
	if rec.Service != "harvester" {
		t.Errorf("Service = %q, want %q", rec.Service, "harvester")
	}
	if rec.Module != "chia.harvester.harvester" {
		t.Errorf("Module = %q, want %q", rec.Module, "chia.harvester.harvester")
	}
	if rec.Level != LevelInfo {
		t.Errorf("Level = %q, want %q", rec.Level, LevelInfo)
	}
	if rec.Message[:1] != "1" {
		t.Errorf("Message should have leading padding trimmed, got %q", rec.Message)
	}
}

func TestParse_UnderscoreService(t *testing.T) {
	line := "2021-06-01T12:00:01.250 full_node chia.full_node.full_node: INFO     ⏲️  Finished signage point 7/64: CC: ab12 RC: cd34"
	rec, ok := ParseInLocation(line, time.UTC)
	if !ok {
		t.Fatal("Parse returned ok=false for a full_node line")
	}
	if rec.Service != "full_node" {
		t.Errorf("Service = %q, want full_node", rec.Service)
	}
}

func TestParse_WithoutFraction(t *testing.T) {
	rec, ok := ParseInLocation("2021-06-01T12:00:01 wallet wallet: ERROR boom", time.UTC)
	if !ok {
		t.Fatal("Parse returned ok=false")
	}
	if rec.Time.Nanosecond() != 0 {
		t.Errorf("Nanosecond = %d, want 0", rec.Time.Nanosecond())
	}
	if rec.Message != "boom" {
		t.Errorf("Message = %q, want boom", rec.Message)
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := []string{
		"",
		"not a log line",
		"2021-06-01T12:00:01.250 harvester chia.harvester.harvester INFO missing colon",
		"2021-06-01T12:00:01.250 harvester chia.harvester.harvester: TRACE unknown level",
		"Traceback (most recent call last):",
	}
	for _, line := range cases {
		if _, ok := Parse(line); ok {
			t.Errorf("Parse(%q) ok = true, want false", line)
		}
	}
}

func TestScanDuration(t *testing.T) {
	d, ok := ScanDuration("1 plots were eligible for farming abc Found 3 proofs. Time: 30.12 s. Total 10 plots")
	if !ok || d != 30.12 {
		t.Errorf("ScanDuration = %v, %v; want 30.12, true", d, ok)
	}
	if _, ok := ScanDuration("Total 10 plots"); ok {
		t.Error("ScanDuration matched a message without a duration")
	}
}

func TestTotalPlots(t *testing.T) {
	n, ok := TotalPlots("... Time: 0.5 s. Total 123 plots")
	if !ok || n != 123 {
		t.Errorf("TotalPlots = %d, %v; want 123, true", n, ok)
	}
	if _, ok := TotalPlots("Found 3 proofs"); ok {
		t.Error("TotalPlots matched a message without a count")
	}
}

func TestPlotFileError(t *testing.T) {
	cases := []struct {
		msg      string
		dir      string
		file     string
		matching bool
	}{
		{"File: /mnt/a/plot-k32-2021.plot Plot ID: abc, challenge: def", "/mnt/a", "plot-k32-2021.plot", true},
		{`File: D:\plots\plot-k32-1.plot read failed`, `D:\plots`, "plot-k32-1.plot", true},
		{"Some other error", "", "", false},
		{"File: /mnt/a/readme.txt", "", "", false},
	}
	for _, tc := range cases {
		dir, file, ok := PlotFileError(tc.msg)
		if ok != tc.matching || dir != tc.dir || file != tc.file {
			t.Errorf("PlotFileError(%q) = %q, %q, %v; want %q, %q, %v",
				tc.msg, dir, file, ok, tc.dir, tc.file, tc.matching)
		}
	}
}

func TestExtractSignagePoint(t *testing.T) {
	rec := Record{
		Level:   LevelInfo,
		Module:  "chia.full_node.full_node",
		Message: "⏲️  Finished signage point 7/64: CC: 0a1b2c RC: 3d4e5f",
	}
	sp, ok := ExtractSignagePoint(rec)
	if !ok {
		t.Fatal("ExtractSignagePoint returned ok=false")
	}
	if sp.Number != 7 || sp.CCHash != "0a1b2c" || sp.RCHash != "3d4e5f" {
		t.Errorf("ExtractSignagePoint = %+v", sp)
	}

	legacy := rec
	legacy.Message = "Finished signage point 12/64, aa00, RC hash: bb11"
	sp, ok = ExtractSignagePoint(legacy)
	if !ok || sp.Number != 12 || sp.CCHash != "aa00" || sp.RCHash != "bb11" {
		t.Errorf("legacy ExtractSignagePoint = %+v, %v", sp, ok)
	}

	wrongModule := rec
	wrongModule.Module = "chia.harvester.harvester"
	if _, ok := ExtractSignagePoint(wrongModule); ok {
		t.Error("ExtractSignagePoint accepted a non full_node record")
	}

	wrongLevel := rec
	wrongLevel.Level = LevelWarning
	if _, ok := ExtractSignagePoint(wrongLevel); ok {
		t.Error("ExtractSignagePoint accepted a WARNING record")
	}
}
