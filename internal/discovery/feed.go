package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Feed is a farmlink event feed found on the network
type Feed struct {
	// Instance is the advertised service instance name
	Instance string

	// Hostname is the mDNS hostname (e.g., "bench-pi.local.")
	Hostname string

	// IP is the preferred address (IPv4 when available)
	IP string

	// Port is the feed's TCP port
	Port int

	// Version is the bridge version from the TXT record, if present
	Version string

	// Path is the WebSocket path from the TXT record
	Path string

	// Metadata holds every TXT record as key/value
	Metadata map[string]string

	DiscoveredAt time.Time
}

// String returns a human-readable description of the feed
func (f *Feed) String() string {
	v := f.Version
	if v == "" {
		v = "unknown"
	}
	return fmt.Sprintf("%s (%s) at %s [version %s]", f.Instance, f.Hostname, f.URL(), v)
}

// URL returns the WebSocket URL of the feed
func (f *Feed) URL() string {
	return "ws://" + net.JoinHostPort(f.IP, strconv.Itoa(f.Port)) + f.Path
}
