package detector

import "time"

// Defaults used when a Settings field is zero.
const (
	DefaultRepeatedFailureThreshold = 5
	DefaultRepeatedFailureWindow    = 300 * time.Second
	DefaultScanWindow               = 3
	DefaultScanThreshold            = 25 * time.Second
	DefaultHeartbeatTimeout         = 60 * time.Second
	DefaultHeartbeatStaleAfter      = 10 * time.Minute
	DefaultHeartbeatHistory         = 128
	HeartbeatModulus                = 64
)

// Settings are the tunables of one detector set.
type Settings struct {
	// ErrorDenylist is appended to DefaultErrorDenylist.
	ErrorDenylist []string

	RepeatedFailureThreshold int
	RepeatedFailureWindow    time.Duration

	ScanWindow    int
	ScanThreshold time.Duration

	HeartbeatTimeout    time.Duration
	HeartbeatStaleAfter time.Duration
	HeartbeatHistory    int
}

// WithDefaults returns s with every zero field replaced by its default.
func (s Settings) WithDefaults() Settings {
	if s.RepeatedFailureThreshold <= 0 {
		s.RepeatedFailureThreshold = DefaultRepeatedFailureThreshold
	}
	if s.RepeatedFailureWindow <= 0 {
		s.RepeatedFailureWindow = DefaultRepeatedFailureWindow
	}
	if s.ScanWindow <= 0 {
		s.ScanWindow = DefaultScanWindow
	}
	if s.ScanThreshold <= 0 {
		s.ScanThreshold = DefaultScanThreshold
	}
	if s.HeartbeatTimeout <= 0 {
		s.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if s.HeartbeatStaleAfter <= 0 {
		s.HeartbeatStaleAfter = DefaultHeartbeatStaleAfter
	}
	if s.HeartbeatHistory <= 0 {
		s.HeartbeatHistory = DefaultHeartbeatHistory
	}
	return s
}
