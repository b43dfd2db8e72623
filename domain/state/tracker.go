package state

// Update folds one cycle's classification into prev and returns the new state
// with the categories that changed. It is a pure function: prev is not
// modified and nothing outside the arguments is consulted.
//
// Unknown readings never overwrite a field. A new map or side, or a detected
// game end, resets objective progress; a new map or a game end also resets the
// clock. Objective progress otherwise only moves forward.
func Update(prev GameState, c Classification) (GameState, Delta) {
	next := prev.Clone()
	next.View = c.View
	var d Delta

	mapChanged := c.Map != "" && c.Map != prev.Map
	sideChanged := c.Side != "" && c.Side != prev.Side
	if mapChanged {
		next.Map = c.Map
		d.Options = true
	}
	if c.Mode != ModeUnknown && c.Mode != prev.Mode {
		next.Mode = c.Mode
		d.Options = true
	}
	if sideChanged {
		next.Side = c.Side
		d.Options = true
	}
	if mapChanged || sideChanged || c.GameEnded {
		d = d.Merge(resetObjective(&next))
	}
	if mapChanged || c.GameEnded {
		d = d.Merge(resetClock(&next))
	}

	for slot, hero := range c.Heroes {
		if slot < 1 || slot > SlotCount || hero == "" {
			continue
		}
		if next.Heroes[slot] != hero {
			next.Heroes[slot] = hero
			d.Heroes = true
		}
	}

	if c.Objective != ProgressUnknown && (next.Objective == ProgressUnknown || c.Objective > next.Objective) {
		next.Objective = c.Objective
		d.Objective = true
	}

	if c.Clock != ClockUnknown && c.Clock != next.Clock {
		next.Clock = c.Clock
		d.Time = true
	}
	return next, d
}

// SetHeroes replaces the slot assignment with heroes, indexed by slot-1. An
// empty entry clears its slot; entries past SlotCount are ignored.
func SetHeroes(prev GameState, heroes []string) (GameState, Delta) {
	next := prev.Clone()
	want := map[int]string{}
	for i, h := range heroes {
		if i >= SlotCount {
			break
		}
		if h != "" {
			want[i+1] = h
		}
	}
	var d Delta
	if len(want) != len(next.Heroes) {
		d.Heroes = true
	}
	for slot, h := range want {
		if next.Heroes[slot] != h {
			d.Heroes = true
		}
	}
	next.Heroes = want
	return next, d
}

// SetSide applies a side chosen by the remote end. A change resets objective
// progress.
func SetSide(prev GameState, side string) (GameState, Delta) {
	next := prev.Clone()
	if side == "" || side == prev.Side {
		return next, Delta{}
	}
	next.Side = side
	d := Delta{Options: true}
	return next, d.Merge(resetObjective(&next))
}

// ResetMatch clears the per-match progress fields, for a new match.
func ResetMatch(prev GameState) (GameState, Delta) {
	next := prev.Clone()
	d := resetObjective(&next)
	return next, d.Merge(resetClock(&next))
}

func resetObjective(s *GameState) Delta {
	if s.Objective == ProgressUnknown {
		return Delta{}
	}
	s.Objective = ProgressUnknown
	return Delta{Objective: true}
}

func resetClock(s *GameState) Delta {
	if s.Clock == ClockUnknown {
		return Delta{}
	}
	s.Clock = ClockUnknown
	return Delta{Time: true}
}
