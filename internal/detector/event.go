package detector

import "time"

// Kind tags every event variant. The set is closed: sinks and the dispatcher
// route on it.
type Kind string

// Event kinds.
const (
	KindLogError         Kind = "log_error"
	KindRepeatedFailure  Kind = "repeated_failure"
	KindScanDuration     Kind = "scan_duration"
	KindPlotCount        Kind = "plot_count"
	KindHeartbeatState   Kind = "heartbeat_state"
	KindHeartbeatSkipped Kind = "heartbeat_skipped"
)

// Kinds lists every event kind in a stable order.
var Kinds = []Kind{
	KindLogError,
	KindRepeatedFailure,
	KindScanDuration,
	KindPlotCount,
	KindHeartbeatState,
	KindHeartbeatSkipped,
}

// Detector names, used as labels by status consumers.
const (
	NameErrorLog     = "error_log"
	NameDriveErrors  = "drive_errors"
	NameScanDuration = "plot_scan_duration"
	NamePlotCount    = "total_plots"
	NameHeartbeat    = "signage_points"
)

// Detector returns the name of the detector producing events of kind k.
func (k Kind) Detector() string {
	switch k {
	case KindLogError:
		return NameErrorLog
	case KindRepeatedFailure:
		return NameDriveErrors
	case KindScanDuration:
		return NameScanDuration
	case KindPlotCount:
		return NamePlotCount
	case KindHeartbeatState, KindHeartbeatSkipped:
		return NameHeartbeat
	}
	return string(k)
}

// Event is implemented by every event variant.
type Event interface {
	Kind() Kind
	// At is when the event happened: the triggering record's timestamp, or the
	// clock time for timer driven events.
	At() time.Time
}

// ErrorEvent is an ERROR line that survived the denylist.
type ErrorEvent struct {
	Time    time.Time `json:"time"`
	Module  string    `json:"module"`
	Message string    `json:"message"`
}

// RepeatedFailureEvent fires once when a directory reaches the error threshold.
type RepeatedFailureEvent struct {
	Time     time.Time `json:"time"`
	Resource string    `json:"resource"`
	Count    int       `json:"count"`
}

// ScanDurationEvent reports a plot scan duration state change. From and To
// are seconds.
type ScanDurationEvent struct {
	Time  time.Time `json:"time"`
	State State     `json:"state"`
	From  float64   `json:"from"`
	To    float64   `json:"to"`
}

// PlotCountEvent reports a regression or (partial) recovery of the total
// plot count.
type PlotCountEvent struct {
	Time  time.Time `json:"time"`
	State State     `json:"state"`
	From  int       `json:"from"`
	To    int       `json:"to"`
}

// Heartbeat is an accepted signage point.
type Heartbeat struct {
	Number        int       `json:"number"`
	ReceivedAt    time.Time `json:"received_at"`
	PrimaryHash   string    `json:"primary_hash"`
	SecondaryHash string    `json:"secondary_hash"`
}

// HeartbeatStateEvent reports a change of the signage point state.
type HeartbeatStateEvent struct {
	Time  time.Time `json:"time"`
	State State     `json:"state"`
	Last  Heartbeat `json:"last"`
}

// HeartbeatSkippedEvent reports a gap in the signage point sequence.
type HeartbeatSkippedEvent struct {
	Time    time.Time `json:"time"`
	From    Heartbeat `json:"from"`
	To      Heartbeat `json:"to"`
	Skipped int       `json:"skipped"`
}

func (ErrorEvent) Kind() Kind            { return KindLogError }
func (RepeatedFailureEvent) Kind() Kind  { return KindRepeatedFailure }
func (ScanDurationEvent) Kind() Kind     { return KindScanDuration }
func (PlotCountEvent) Kind() Kind        { return KindPlotCount }
func (HeartbeatStateEvent) Kind() Kind   { return KindHeartbeatState }
func (HeartbeatSkippedEvent) Kind() Kind { return KindHeartbeatSkipped }

func (e ErrorEvent) At() time.Time            { return e.Time }
func (e RepeatedFailureEvent) At() time.Time  { return e.Time }
func (e ScanDurationEvent) At() time.Time     { return e.Time }
func (e PlotCountEvent) At() time.Time        { return e.Time }
func (e HeartbeatStateEvent) At() time.Time   { return e.Time }
func (e HeartbeatSkippedEvent) At() time.Time { return e.Time }
