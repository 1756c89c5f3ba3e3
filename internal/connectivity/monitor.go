// Package connectivity tracks whether the remote backend is considered
// reachable. The flag is set by callers (health probes, transport errors,
// explicit toggles) and read by the data layer when choosing a source.
package connectivity

import "sync/atomic"

type Monitor struct {
	offline atomic.Bool
}

// NewMonitor returns a monitor that starts in the online state.
func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) SetOnline(online bool) {
	m.offline.Store(!online)
}

func (m *Monitor) Online() bool {
	return !m.offline.Load()
}
