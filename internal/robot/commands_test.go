package robot

import "testing"

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantHit bool
	}{
		{name: "reload", want: "20,0", wantHit: true},
		{name: "MOISTURE-DATA", want: "20,2", wantHit: true},
		{name: "stop", want: "STAP", wantHit: true},
		{name: "fly", wantHit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := Lookup(tt.name)
			if ok != tt.wantHit {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.name, ok, tt.wantHit)
			}
			if ok && p.Command != tt.want {
				t.Errorf("Command = %q, want %q", p.Command, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	if got := Resolve("calibrate"); got != "6" {
		t.Errorf("Resolve(calibrate) = %q, want 6", got)
	}
	if got := Resolve("CHA,8,12"); got != "CHA,8,12" {
		t.Errorf("Resolve(literal) = %q", got)
	}
}

func TestPresetsSorted(t *testing.T) {
	ps := Presets()
	if len(ps) != 8 {
		t.Fatalf("Presets() = %d entries, want 8", len(ps))
	}
	for i := 1; i < len(ps); i++ {
		if ps[i-1].Name > ps[i].Name {
			t.Errorf("presets not sorted: %q before %q", ps[i-1].Name, ps[i].Name)
		}
	}
}

func TestBuilders(t *testing.T) {
	if got, err := Pump(250); err != nil || got != "12,250" {
		t.Errorf("Pump(250) = %q, %v", got, err)
	}
	if _, err := Pump(0); err == nil {
		t.Error("Pump(0) should fail")
	}
	if got, err := RunMission(42); err != nil || got != "5,42,0,0,0" {
		t.Errorf("RunMission(42) = %q, %v", got, err)
	}
	if _, err := RunMission(-1); err == nil {
		t.Error("RunMission(-1) should fail")
	}
}
