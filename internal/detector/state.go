package detector

// State is a detector's current belief about the node's health.
type State string

// Health states.
const (
	StateNormal     State = "normal"
	StateDegraded   State = "degraded"
	StateNotRunning State = "not_running"
)

// Level maps a State onto a gauge value: 0 normal, 1 degraded, 2 not running.
func (s State) Level() float64 {
	switch s {
	case StateDegraded:
		return 1
	case StateNotRunning:
		return 2
	default:
		return 0
	}
}
