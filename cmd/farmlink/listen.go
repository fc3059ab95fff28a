package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/farmlink/internal/capture"
	"github.com/muurk/farmlink/internal/discovery"
	"github.com/muurk/farmlink/internal/feed"
	"github.com/muurk/farmlink/internal/journal"
	"github.com/muurk/farmlink/internal/logging"
	"github.com/muurk/farmlink/internal/monitor"
	"github.com/muurk/farmlink/internal/robot"
	"github.com/muurk/farmlink/internal/serial"
	"github.com/muurk/farmlink/internal/sink"
	"github.com/muurk/farmlink/internal/stream"
)

// Listen command flags
var (
	listenPort        string
	listenBaud        int
	listenOutput      string
	listenTUI         bool
	listenFeed        bool
	listenFeedAddr    string
	listenNoAdvertise bool
	listenCapture     bool
	listenCaptureDir  string
	listenNoHeartbeat bool
	listenNoJournal   bool
	listenStrictHex   bool
	listenPositions   bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Connect to the robot and process its output",
	Long: `Open the robot's serial port and process everything it sends.

Completed file transfers are written to the output directory, transfers and
positions are recorded in the journal, and a heartbeat ping keeps the robot's
clock in sync. Lines typed on stdin are sent to the robot; preset names
(see 'farmlink send --list') are expanded and "!interrupt", "!reset", "!raw"
and "!normal" send console control sequences.

With --tui the session runs in a full-screen monitor. With --feed the events
are also served to WebSocket clients at /events and advertised over mDNS.`,
	Example: `  # Auto-detect the robot and print its output
  farmlink listen

  # Full-screen monitor, saving files under ./downloads
  farmlink listen --tui --output ./downloads

  # Serve the event feed and record the session for later replay
  farmlink listen --feed --capture

  # Explicit port without heartbeat
  farmlink listen --port /dev/ttyACM0 --no-heartbeat`,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().StringVar(&listenPort, "port", "", "Serial port (default: config, then USB auto-detect)")
	listenCmd.Flags().IntVar(&listenBaud, "baud", 0, "Baud rate (default: config, 115200)")
	listenCmd.Flags().StringVar(&listenOutput, "output", "", "Directory for received files (default: config)")
	listenCmd.Flags().BoolVar(&listenTUI, "tui", false, "Run the full-screen terminal monitor")
	listenCmd.Flags().BoolVar(&listenFeed, "feed", false, "Serve the WebSocket event feed")
	listenCmd.Flags().StringVar(&listenFeedAddr, "feed-addr", "", "Event feed listen address (default: config, :8765)")
	listenCmd.Flags().BoolVar(&listenNoAdvertise, "no-advertise", false, "Do not advertise the event feed over mDNS")
	listenCmd.Flags().BoolVar(&listenCapture, "capture", false, "Record the raw session for 'farmlink decode'")
	listenCmd.Flags().StringVar(&listenCaptureDir, "capture-dir", "", "Directory for capture files (default: config)")
	listenCmd.Flags().BoolVar(&listenNoHeartbeat, "no-heartbeat", false, "Do not send heartbeat pings")
	listenCmd.Flags().BoolVar(&listenNoJournal, "no-journal", false, "Do not record transfers and positions")
	listenCmd.Flags().BoolVar(&listenStrictHex, "strict-hex", false, "Reject malformed hex in transfer frames")
	listenCmd.Flags().BoolVar(&listenPositions, "positions", false, "Print position updates (console mode)")

	rootCmd.AddCommand(listenCmd)
}

// applyListenFlags lets explicitly set flags override the config file
func applyListenFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Serial.Port = listenPort
	}
	if flags.Changed("baud") {
		cfg.Serial.Baud = listenBaud
	}
	if flags.Changed("output") {
		cfg.Output.Dir = listenOutput
	}
	if flags.Changed("feed-addr") {
		cfg.Feed.Addr = listenFeedAddr
	}
	if listenNoAdvertise {
		cfg.Feed.Advertise = false
	}
	if flags.Changed("capture-dir") {
		cfg.Capture.Dir = listenCaptureDir
	}
	if listenNoHeartbeat {
		cfg.Heartbeat.Enabled = false
	}
	if listenNoJournal {
		cfg.Journal.Enabled = false
	}
	if listenStrictHex {
		cfg.Stream.StrictHex = true
	}
}

// link carries commands to the robot, through the capture recorder when one
// is active. Control sequences always go straight to the port.
type link struct {
	serial.Sender
	port *serial.Port
}

func (l link) Control(name string) error {
	return l.port.Control(name)
}

func runListen(cmd *cobra.Command, args []string) error {
	applyListenFlags(cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port, err := openPort(cfg, "")
	if err != nil {
		return err
	}
	defer port.Close()

	var reader io.Reader = port
	var sender serial.Sender = port
	if listenCapture {
		rec, err := capture.Create(cfg.Capture.Dir)
		if err != nil {
			return err
		}
		defer rec.Close()
		reader = rec.Reader(port)
		sender = rec.Sender(port)
		logging.Info("Recording session", zap.String("path", rec.Path()))
		if !listenTUI {
			fmt.Printf("-- recording to %s\n", rec.Path())
		}
	}
	robotLink := link{Sender: sender, port: port}

	store := sink.NewStore(cfg.Output.Dir)
	handlers := []stream.Handler{store}

	if cfg.Journal.Enabled {
		path, err := cfg.JournalPath()
		if err != nil {
			return err
		}
		j, err := journal.Open(path)
		if err != nil {
			return err
		}
		defer j.Close()
		handlers = append(handlers, j)
	}

	if listenFeed {
		hub, wait, err := startFeed(ctx, robotLink)
		if err != nil {
			return err
		}
		// Runs before the deferred port and journal closes
		defer wait()
		handlers = append(handlers, hub)
	}

	if cfg.Heartbeat.Enabled {
		go serial.Heartbeat(ctx, port, cfg.Heartbeat.Interval)
	}

	if listenTUI {
		return runMonitor(ctx, stop, port.Path(), robotLink, reader, store, handlers)
	}

	store.OnSaved = func(path string) { fmt.Printf("-- saved %s\n", path) }
	handlers = append(handlers, consoleHandler(os.Stdout, listenPositions))
	d := stream.NewDispatcher(stream.Multi(handlers...), cfg.StreamOptions())

	fmt.Printf("-- listening on %s at %d baud (Ctrl-C to stop)\n", port.Path(), cfg.Serial.Baud)
	go forwardInput(ctx, os.Stdin, robotLink)

	err = stream.Pump(ctx, reader, d)
	switch {
	case err == nil:
		fmt.Println("-- stream closed")
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	case serial.IsDisconnect(err):
		return fmt.Errorf("robot disconnected from %s: %w", port.Path(), err)
	}
	return err
}

// runMonitor drives the session from the terminal monitor until the user
// quits or the context ends
func runMonitor(ctx context.Context, stop context.CancelFunc, portName string, sender serial.Sender, reader io.Reader, store *sink.Store, handlers []stream.Handler) error {
	prog := monitor.NewProgram(ctx, monitor.New(monitor.Options{Port: portName, Sender: sender}))
	store.OnSaved = prog.Saved

	d := stream.NewDispatcher(stream.Multi(append(handlers, prog)...), cfg.StreamOptions())

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		err := stream.Pump(ctx, reader, d)
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			logging.Error("Stream stopped", zap.Error(err))
		}
		prog.StreamEnded(err)
	}()

	err := prog.Run()
	stop()
	<-pumpDone
	return err
}

// startFeed serves the event feed and advertises it. The returned wait
// function stops the feed and blocks until the server has shut down.
func startFeed(ctx context.Context, sender feed.Sender) (*feed.Hub, func(), error) {
	host, portStr, err := net.SplitHostPort(cfg.Feed.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid feed address %q: %w", cfg.Feed.Addr, err)
	}
	feedPort, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid feed port %q: %w", portStr, err)
	}

	hub := feed.NewHub(sender)
	srv := feed.New(&feed.Config{Host: host, Port: feedPort}, hub)
	addr, err := srv.Listen()
	if err != nil {
		return nil, nil, err
	}
	if !listenTUI {
		fmt.Printf("-- event feed at ws://%s%s\n", addr, feed.EventsPath)
	}

	var ad *discovery.Advertisement
	if cfg.Feed.Advertise {
		instance := cfg.Feed.Instance
		if instance == "" {
			instance = defaultInstance()
		}
		ad, err = discovery.Advertise(instance, addr.(*net.TCPAddr).Port, discovery.FeedTXT(feed.EventsPath))
		if err != nil {
			// The feed still works by address
			logging.Warn("Could not advertise event feed", zap.Error(err))
		}
	}

	feedCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- srv.Start(feedCtx)
	}()

	wait := func() {
		ad.Shutdown()
		cancel()
		if err := <-done; err != nil {
			logging.Error("Event feed stopped with error", zap.Error(err))
		}
	}
	return hub, wait, nil
}

func defaultInstance() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "farmlink"
	}
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	return "farmlink-" + host
}

// forwardInput sends each line read from r to the robot
func forwardInput(ctx context.Context, r io.Reader, l link) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var err error
		if name, ok := strings.CutPrefix(text, "!"); ok {
			err = l.Control(name)
		} else {
			err = l.Send(robot.Resolve(text))
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "-- %s: %v\n", text, err)
		}
	}
}
