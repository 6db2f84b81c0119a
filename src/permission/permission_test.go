package permission

import "testing"

type fakeLookup map[string]string

func (f fakeLookup) get(key string) (string, bool) {
	v, ok := f[key]
	return v, ok
}

func TestInterpretOverride(t *testing.T) {
	cases := map[string]State{
		"granted": StateGranted,
		" YES ":   StateGranted,
		"denied":  StateDenied,
		"false":   StateDenied,
		"maybe":   StateUnknown,
	}
	for value, want := range cases {
		if got := interpretOverride(value); got != want {
			t.Errorf("interpretOverride(%q) = %s; want %s", value, got, want)
		}
	}
}

func TestCheckUsesProbe(t *testing.T) {
	trusted := false
	g := &Gate{lookup: fakeLookup{}.get, probe: func() bool { return trusted }, prompt: func() {}}
	if g.Check() {
		t.Fatal("expected denied before trust")
	}
	trusted = true
	if !g.Check() {
		t.Fatal("expected granted once trusted; state must not be cached")
	}
}

func TestCheckHasNoSideEffects(t *testing.T) {
	prompts := 0
	g := &Gate{lookup: fakeLookup{}.get, probe: func() bool { return false }, prompt: func() { prompts++ }}
	for i := 0; i < 3; i++ {
		g.Check()
		g.Status()
	}
	if prompts != 0 {
		t.Fatalf("Check prompted %d times", prompts)
	}
}

func TestOverrideWinsOverProbe(t *testing.T) {
	g := &Gate{
		lookup: fakeLookup{OverrideEnvVar: "denied"}.get,
		probe:  func() bool { return true },
		prompt: func() { t.Fatal("Request must not prompt while overridden") },
	}
	if g.Check() {
		t.Fatal("override should deny")
	}
	g.Request()

	g.lookup = fakeLookup{OverrideEnvVar: "???"}.get
	if g.Status() != StateUnknown {
		t.Fatalf("expected unknown, got %s", g.Status())
	}
	if g.Check() {
		t.Fatal("unknown must not count as granted")
	}
}

func TestRequestSurvivesPromptPanic(t *testing.T) {
	g := &Gate{lookup: fakeLookup{}.get, probe: func() bool { return false }, prompt: func() { panic("no window server") }}
	g.Request()
}
