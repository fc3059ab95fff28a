package telemetry

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtractor_Feed(t *testing.T) {
	tests := []struct {
		name      string
		fragments []string
		want      []Event
	}{
		{
			name:      "single match",
			fragments: []string{"Moved to (3,4)\n"},
			want:      []Event{{X: 3, Y: 4, Z: Visible}},
		},
		{
			name:      "signed decimals with spaces",
			fragments: []string{"gantry: Moved  to (-12.5, 0.25) ok"},
			want:      []Event{{X: -12.5, Y: 0.25, Z: Visible}},
		},
		{
			name:      "several matches in one fragment",
			fragments: []string{"Moved to (1,2)\nMoved to (3,4)\nMoved to (5,6)\n"},
			want: []Event{
				{X: 1, Y: 2, Z: Visible},
				{X: 3, Y: 4, Z: Visible},
				{X: 5, Y: 6, Z: Visible},
			},
		},
		{
			name:      "match split across fragments",
			fragments: []string{"Moved t", "o (10,", "20)\n"},
			want:      []Event{{X: 10, Y: 20, Z: Visible}},
		},
		{
			name:      "match reported once across later fragments",
			fragments: []string{"Moved to (1,1)\n", "idle\n", "idle\n"},
			want:      []Event{{X: 1, Y: 1, Z: Visible}},
		},
		{
			name:      "no match",
			fragments: []string{"Moved nowhere\n", "to (1,2)\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractor(0)
			var got []Event
			for _, f := range tt.fragments {
				got = append(got, e.Feed(f)...)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("events = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("event[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestExtractor_BufferBound(t *testing.T) {
	e := NewExtractor(DefaultWindow)
	for i := 0; i < 10; i++ {
		if events := e.Feed(strings.Repeat("soil ok; ", 10)); len(events) != 0 {
			t.Fatalf("unexpected events: %v", events)
		}
	}
	if n := utf8.RuneCountInString(e.Buffered()); n != DefaultWindow {
		t.Errorf("buffered = %d characters, want %d", n, DefaultWindow)
	}
}

func TestExtractor_WindowCountsCharacters(t *testing.T) {
	e := NewExtractor(4)
	e.Feed("ééééééé")
	if got := e.Buffered(); got != "éééé" {
		t.Errorf("Buffered() = %q, want %q", got, "éééé")
	}
}

func TestExtractor_Reset(t *testing.T) {
	e := NewExtractor(0)
	e.Feed("Moved to (1,")
	e.Reset()
	if events := e.Feed("2)\n"); len(events) != 0 {
		t.Errorf("events after Reset = %v, want none", events)
	}
}

func TestEvent_Tuple(t *testing.T) {
	tuple := Event{X: 3, Y: 4, Z: Visible}.Tuple()
	if tuple[0] != 3.0 || tuple[1] != 4.0 || tuple[2] != 1.0 {
		t.Errorf("Tuple() = %v, want [3 4 1 <nil> <nil>]", tuple)
	}
	if tuple[3] != nil || tuple[4] != nil {
		t.Errorf("reserved slots = %v %v, want nil", tuple[3], tuple[4])
	}
}
