// Package logline turns raw debug.log lines into Records and extracts the
// values the detectors react to.
//
// The line grammar is
//
//	<timestamp> <service> <module>: <LEVEL> <message>
//
// for example
//
//	2021-06-01T12:00:00.123 harvester chia.harvester.harvester: INFO     1 plots were eligible ...
//
// Lines that do not match, or carry an unknown level, are dropped by Parse
// (ok == false). The extractors (ScanDuration, TotalPlots, PlotFileError,
// SignagePoint) are pure functions over a Record or its message.
package logline
