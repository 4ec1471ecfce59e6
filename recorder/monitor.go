package recorder

import "time"

const (
	// DefaultTickInterval is the recording progress tick.
	DefaultTickInterval = time.Second
	// DefaultMaxDuration is the recording-time ceiling. It bounds payload
	// size and user wait time; reaching it stops the session regardless
	// of caller action.
	DefaultMaxDuration = 10 * time.Second
)

// ceilingMonitor counts elapsed ticks against the recording ceiling.
type ceilingMonitor struct {
	ticks    int
	maxTicks int
}

func newCeilingMonitor(maxDuration, tickInterval time.Duration) *ceilingMonitor {
	maxTicks := int(maxDuration / tickInterval)
	if maxTicks < 1 {
		maxTicks = 1
	}
	return &ceilingMonitor{maxTicks: maxTicks}
}

// Tick records one interval and reports whether the ceiling is reached.
func (m *ceilingMonitor) Tick() bool {
	m.ticks++
	return m.ticks >= m.maxTicks
}

// Elapsed returns how many whole intervals have passed.
func (m *ceilingMonitor) Elapsed() int { return m.ticks }
