package serial

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/farmlink/internal/logging"
)

// DefaultHeartbeatInterval is how often the robot expects a ping
const DefaultHeartbeatInterval = 5 * time.Second

// FormatPing renders the heartbeat command for t in local time:
// ping,year,month,day,weekday,hour,minute,second,millisecond.
// Month is 1-based, weekday 0 is Sunday.
func FormatPing(t time.Time) string {
	return fmt.Sprintf("%s%d,%d,%d,%d,%d,%d,%d,%d",
		PingPrefix,
		t.Year(), int(t.Month()), t.Day(), int(t.Weekday()),
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/int(time.Millisecond),
	)
}

// Heartbeat sends a ping every interval until ctx is done. The robot uses
// the pings to set its clock and to notice the base station going away.
// Send failures are logged and the heartbeat carries on.
func Heartbeat(ctx context.Context, s Sender, interval time.Duration) {
	heartbeat(ctx, s, interval, time.Now)
}

func heartbeat(ctx context.Context, s Sender, interval time.Duration, now func() time.Time) {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ping := FormatPing(now())
			if err := s.Send(ping); err != nil {
				logging.Warn("Heartbeat failed", zap.Error(err))
				continue
			}
			logging.Debug("Heartbeat sent", zap.String("ping", ping))
		}
	}
}
