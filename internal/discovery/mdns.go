package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/farmlink/internal/feed"
	"github.com/muurk/farmlink/internal/logging"
	"github.com/muurk/farmlink/internal/version"
)

const (
	// ServiceType is the mDNS service type farmlink feeds register under
	ServiceType = "_farmlink._tcp"

	// ServiceDomain is the mDNS domain
	ServiceDomain = "local."

	// DefaultScanTimeout is how long Browse listens for answers
	DefaultScanTimeout = 5 * time.Second

	// TXT record keys
	TXTVersion = "version"
	TXTPath    = "path"
)

// FeedTXT returns the TXT records a feed advertises
func FeedTXT(path string) map[string]string {
	return map[string]string{
		TXTVersion: version.Version,
		TXTPath:    path,
	}
}

// Advertisement is a registered mDNS service
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise registers a feed under ServiceType until Shutdown is called
func Advertise(instance string, port int, txt map[string]string) (*Advertisement, error) {
	if instance == "" {
		return nil, fmt.Errorf("instance name is required")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}

	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, encodeTXT(txt), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logging.Info("Advertising feed",
		zap.String("instance", instance),
		zap.String("service", ServiceType),
		zap.Int("port", port))
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the advertisement
func (a *Advertisement) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
}

// encodeTXT renders key=value pairs in a stable order
func encodeTXT(txt map[string]string) []string {
	records := make([]string, 0, len(txt))
	for k, v := range txt {
		records = append(records, k+"="+v)
	}
	sort.Strings(records)
	return records
}

// Scanner handles mDNS feed discovery
type Scanner struct {
	// Timeout is the maximum time to listen for answers
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Browse lists the feeds that answer within the scanner's timeout. Each
// instance is reported once.
func (s *Scanner) Browse(ctx context.Context) ([]*Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var (
		mu    sync.Mutex
		feeds []*Feed
		seen  = make(map[string]bool)
	)
	err := s.browse(ctx, func(f *Feed) bool {
		mu.Lock()
		defer mu.Unlock()
		if !seen[f.Instance] {
			seen[f.Instance] = true
			feeds = append(feeds, f)
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	result := make([]*Feed, len(feeds))
	copy(result, feeds)
	sort.Slice(result, func(i, j int) bool { return result[i].Instance < result[j].Instance })
	return result, nil
}

// WaitForFeed waits for a specific instance to answer
func (s *Scanner) WaitForFeed(ctx context.Context, instance string) (*Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	found := make(chan *Feed, 1)
	err := s.browse(ctx, func(f *Feed) bool {
		if f.Instance != instance {
			return true
		}
		select {
		case found <- f:
		default:
		}
		cancel()
		return false
	})
	if err != nil {
		return nil, err
	}

	select {
	case f := <-found:
		return f, nil
	case <-ctx.Done():
		// The match may have raced the cancel it triggered
		select {
		case f := <-found:
			return f, nil
		default:
		}
		return nil, fmt.Errorf("feed %q not found within %s", instance, s.Timeout)
	}
}

// browse starts a resolver and hands every parsed entry to fn until fn
// returns false or the context ends
func (s *Scanner) browse(ctx context.Context, fn func(*Feed) bool) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				f := s.parseServiceEntry(entry)
				if f == nil {
					continue
				}
				logging.Debug("Discovered feed", zap.String("instance", f.Instance), zap.String("url", f.URL()))
				if !fn(f) {
					return
				}
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

// parseServiceEntry converts a zeroconf service entry to a Feed.
// Returns nil if the entry has no usable address.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Feed {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = feed.DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	path := metadata[TXTPath]
	if path == "" {
		path = feed.EventsPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return &Feed{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Version:      metadata[TXTVersion],
		Path:         path,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
