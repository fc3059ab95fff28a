// Package discovery advertises and finds farmlink event feeds over mDNS.
//
// A bridge running with the WebSocket feed enabled registers itself as a
// "_farmlink._tcp" service so dashboards on the same network segment can
// connect without knowing the host's address. TXT records carry the bridge
// version and the feed path.
//
// # Usage Example
//
//	ad, err := discovery.Advertise("farmlink-bench", 8765, discovery.FeedTXT(feed.EventsPath))
//	if err != nil {
//	    return err
//	}
//	defer ad.Shutdown()
//
//	// elsewhere
//	feeds, err := discovery.NewScanner().Browse(ctx)
//	for _, f := range feeds {
//	    fmt.Println(f.URL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Firewall must allow mDNS (UDP port 5353)
package discovery
