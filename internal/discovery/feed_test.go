package discovery

import "testing"

func TestFeed_URL(t *testing.T) {
	tests := []struct {
		name string
		feed *Feed
		want string
	}{
		{"ipv4", &Feed{IP: "192.168.4.16", Port: 8765, Path: "/events"}, "ws://192.168.4.16:8765/events"},
		{"ipv6", &Feed{IP: "fe80::1", Port: 8765, Path: "/events"}, "ws://[fe80::1]:8765/events"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.feed.URL(); got != tt.want {
				t.Errorf("URL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFeed_String(t *testing.T) {
	f := &Feed{Instance: "farmlink-bench", Hostname: "bench.local.", IP: "10.0.0.2", Port: 8765, Path: "/events"}
	want := "farmlink-bench (bench.local.) at ws://10.0.0.2:8765/events [version unknown]"
	if got := f.String(); got != want {
		t.Errorf("String() = %v, want %v", got, want)
	}

	f.Version = "1.0.0"
	want = "farmlink-bench (bench.local.) at ws://10.0.0.2:8765/events [version 1.0.0]"
	if got := f.String(); got != want {
		t.Errorf("String() = %v, want %v", got, want)
	}
}
