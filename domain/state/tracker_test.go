package state

import (
	"reflect"
	"testing"
)

func classification(mods ...func(*Classification)) Classification {
	c := Unclassified(ViewInGame)
	for _, m := range mods {
		m(&c)
	}
	return c
}

func TestUpdate_OnlyChangedCategories(t *testing.T) {
	prev := New("", "")
	next, d := Update(prev, classification(func(c *Classification) {
		c.View = ViewHeroSelect
		c.Map, c.Mode, c.Side = "Hanamura", ModeStandard, "Attack"
		c.Heroes = map[int]string{1: "mercy", 3: "genji"}
	}))
	if d != (Delta{Heroes: true, Options: true}) {
		t.Fatalf("unexpected delta %+v", d)
	}
	if next.Map != "Hanamura" || next.Side != "Attack" || next.Mode != ModeStandard || next.View != ViewHeroSelect {
		t.Fatalf("unexpected state %+v", next)
	}
	if len(prev.Heroes) != 0 {
		t.Fatalf("prev must not be mutated: %+v", prev.Heroes)
	}
	again, d := Update(next, classification(func(c *Classification) {
		c.Map, c.Side = "Hanamura", "Attack"
		c.Heroes = map[int]string{1: "mercy"}
	}))
	if !d.Empty() {
		t.Fatalf("identical readings must produce empty delta, got %+v", d)
	}
	if !reflect.DeepEqual(again.Heroes, next.Heroes) {
		t.Fatalf("heroes changed unexpectedly: %v", again.Heroes)
	}
}

func TestUpdate_UnknownNeverOverwrites(t *testing.T) {
	prev := New("Hanamura", "Attack")
	prev.Heroes[2] = "ana"
	prev.Objective, prev.Clock = 33, 95
	next, d := Update(prev, Unclassified(ViewUnknown))
	if !d.Empty() {
		t.Fatalf("expected empty delta, got %+v", d)
	}
	if next.Map != "Hanamura" || next.Side != "Attack" || next.Heroes[2] != "ana" || next.Objective != 33 || next.Clock != 95 {
		t.Fatalf("unknown readings overwrote state: %+v", next)
	}
}

func TestUpdate_ObjectiveMonotonicUntilReset(t *testing.T) {
	s := New("Hanamura", "Attack")
	steps := []struct {
		name    string
		c       Classification
		want    int
		changed bool
	}{
		{"first reading", classification(func(c *Classification) { c.Objective = 33 }), 33, true},
		{"advance", classification(func(c *Classification) { c.Objective = 66 }), 66, true},
		{"noisy regression ignored", classification(func(c *Classification) { c.Objective = 0 }), 66, false},
		{"same value", classification(func(c *Classification) { c.Objective = 66 }), 66, false},
		{"unknown frame", classification(), 66, false},
		{"side change resets", classification(func(c *Classification) { c.Side = "Defense"; c.Objective = 0 }), 0, true},
		{"map change resets", classification(func(c *Classification) { c.Map = "Volskaya" }), ProgressUnknown, true},
	}
	for _, st := range steps {
		var d Delta
		s, d = Update(s, st.c)
		if s.Objective != st.want || d.Objective != st.changed {
			t.Fatalf("%s: objective=%d changed=%v want %d/%v", st.name, s.Objective, d.Objective, st.want, st.changed)
		}
	}
}

func TestUpdate_ClockInvalidRetainsPrevious(t *testing.T) {
	s := New("", "")
	s, d := Update(s, classification(func(c *Classification) { c.Clock = 125 }))
	if s.Clock != 125 || !d.Time {
		t.Fatalf("expected clock 125 published, got %d %+v", s.Clock, d)
	}
	s, d = Update(s, classification())
	if s.Clock != 125 || d.Time {
		t.Fatalf("invalid reading must keep 125 unpublished, got %d %+v", s.Clock, d)
	}
}

func TestUpdate_GameEndResetsProgressAndClock(t *testing.T) {
	s := New("Hanamura", "Attack")
	s.Objective, s.Clock = 100, 400
	next, d := Update(s, classification(func(c *Classification) { c.GameEnded = true }))
	if next.Objective != ProgressUnknown || next.Clock != ClockUnknown {
		t.Fatalf("expected reset, got %+v", next)
	}
	if d != (Delta{Objective: true, Time: true}) {
		t.Fatalf("unexpected delta %+v", d)
	}
}

func TestUpdate_SideChangeKeepsClock(t *testing.T) {
	s := New("Hanamura", "Attack")
	s.Clock = 300
	next, d := Update(s, classification(func(c *Classification) { c.Side = "Defense" }))
	if next.Clock != 300 || d.Time {
		t.Fatalf("side change must not reset the clock: %+v %+v", next, d)
	}
}

func TestSetHeroes_Replaces(t *testing.T) {
	s := New("", "")
	s.Heroes[1], s.Heroes[2] = "mercy", "ana"
	next, d := SetHeroes(s, []string{"mercy", "", "reinhardt"})
	if !d.Heroes {
		t.Fatalf("expected heroes delta")
	}
	want := map[int]string{1: "mercy", 3: "reinhardt"}
	if !reflect.DeepEqual(next.Heroes, want) {
		t.Fatalf("got %v want %v", next.Heroes, want)
	}
	if _, d := SetHeroes(next, []string{"mercy", "", "reinhardt"}); d.Heroes {
		t.Fatalf("identical list must not be a change")
	}
	if list := next.HeroList(); len(list) != SlotCount || list[2] != "reinhardt" || list[1] != "" {
		t.Fatalf("unexpected hero list %v", list)
	}
}

func TestSetSide(t *testing.T) {
	s := New("Hanamura", "Attack")
	s.Objective = 50
	next, d := SetSide(s, "Defense")
	if next.Side != "Defense" || next.Objective != ProgressUnknown || d != (Delta{Options: true, Objective: true}) {
		t.Fatalf("unexpected %+v %+v", next, d)
	}
	if _, d := SetSide(next, "Defense"); !d.Empty() {
		t.Fatalf("same side must be a no-op")
	}
	if _, d := SetSide(next, ""); !d.Empty() {
		t.Fatalf("empty side must be a no-op")
	}
}

func TestDelta_TagsOrder(t *testing.T) {
	d := Delta{Time: true, Heroes: true}
	got := d.Merge(Delta{Options: true}).Tags()
	want := []Tag{TagHeroes, TagOptions, TagTime}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if !(Delta{}).Empty() || d.Empty() {
		t.Fatalf("Empty misreports")
	}
}

func TestParseView(t *testing.T) {
	for _, v := range []View{ViewHeroSelect, ViewTab, ViewInGame} {
		got, ok := ParseView(v.String())
		if !ok || got != v {
			t.Fatalf("ParseView(%q) = %v, %v", v.String(), got, ok)
		}
	}
	if _, ok := ParseView("unknown"); ok {
		t.Fatalf("unknown must not parse")
	}
}
