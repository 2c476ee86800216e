package activity

import (
	"sync"
	"time"
)

// State is a point-in-time snapshot of the service activity flag.
type State struct {
	Active    bool
	ChangedAt time.Time
}

// Gate holds the process-wide active/sleeping flag. New realtime connections
// are admitted only while the gate is active. The gate only tracks the flag;
// the notify-then-disconnect cascade on sleep belongs to the connection
// layer.
type Gate struct {
	mu    sync.RWMutex
	state State
}

func New(active bool) *Gate {
	return &Gate{
		state: State{Active: active, ChangedAt: time.Now().UTC()},
	}
}

func (g *Gate) Active() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.state.Active
}

func (g *Gate) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.state
}

// SetActive flips the flag and returns the resulting state. ChangedAt moves
// only on an actual transition.
func (g *Gate) SetActive(active bool) State {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.Active != active {
		g.state = State{Active: active, ChangedAt: time.Now().UTC()}
	}

	return g.state
}

// Wake forces the gate active. Already-rejected clients are not re-admitted;
// they are expected to retry.
func (g *Gate) Wake() State {
	return g.SetActive(true)
}
