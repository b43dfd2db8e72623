package app

import (
	"sync"
	"time"

	"github.com/soocke/teambuilder-tracker/domain/bridge"
)

// Uptime tracks how long the bridge has been active in the current session
// and in total. The zero value is ready to use; methods are safe for
// concurrent use.
type Uptime struct {
	mu          sync.Mutex
	active      bool
	start       time.Time
	lastSession time.Duration
	accumulated time.Duration
}

// OnTick updates the tracker from the current activity and timestamp.
func (u *Uptime) OnTick(active bool, now time.Time) {
	if u == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if active {
		if !u.active {
			u.active = true
			u.start = now
			u.lastSession = 0
		}
		u.lastSession = now.Sub(u.start)
	} else if u.active {
		u.lastSession = now.Sub(u.start)
		u.accumulated += u.lastSession
		u.active = false
	}
}

// Values returns the current session duration and the total. The total
// includes the ongoing session.
func (u *Uptime) Values() (session, total time.Duration) {
	if u == nil {
		return 0, 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	session = u.lastSession
	total = u.accumulated
	if u.active {
		total += session
	}
	return
}

// Listener returns a bridge listener feeding the tracker with now.
func (u *Uptime) Listener(now func() time.Time) bridge.Listener {
	return func(_, next bridge.Status) {
		u.OnTick(next.Phase == bridge.PhaseActive, now())
	}
}
