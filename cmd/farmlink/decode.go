package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/muurk/farmlink/internal/capture"
	"github.com/muurk/farmlink/internal/protocol"
	"github.com/muurk/farmlink/internal/sink"
	"github.com/muurk/farmlink/internal/stream"
	"github.com/muurk/farmlink/internal/telemetry"
)

// Decode command flags
var (
	decodeOutput    string
	decodeStrictHex bool
	decodePositions bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode <file>",
	Short: "Replay a capture or raw log through the decoder",
	Long: `Feed a recorded session through the same decoder 'listen' uses.

The file may be a capture written by 'farmlink listen --capture' (JSON lines,
replayed with the original read boundaries) or any plain text log of the
robot's output.`,
	Example: `  # Show what a capture contains
  farmlink decode capture-20260401-101500.jsonl

  # Recover the files from a terminal log
  farmlink decode robot.log --output ./recovered`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

// Encode command flags
var (
	encodeType      string
	encodeName      string
	encodeChunkSize int
	encodePort      string
)

var encodeCmd = &cobra.Command{
	Use:   "encode <file>",
	Short: "Print the FT frames the robot would send for a file",
	Long: `Split a file into FT header, payload and end frames exactly as the robot
firmware does. Frames are printed one per line, or written to a serial port
with --port to exercise a receiver over a loopback cable.`,
	Example: `  farmlink encode farm.json
  farmlink encode moisture.csv --name moisture_data
  farmlink encode farm.json --port /dev/ttyUSB1`,
	Args: cobra.ExactArgs(1),
	RunE: runEncode,
}

func init() {
	decodeCmd.Flags().StringVar(&decodeOutput, "output", "", "Save received files to this directory")
	decodeCmd.Flags().BoolVar(&decodeStrictHex, "strict-hex", false, "Reject malformed hex in transfer frames")
	decodeCmd.Flags().BoolVar(&decodePositions, "positions", false, "Print position updates")

	encodeCmd.Flags().StringVar(&encodeType, "type", "", "File type: json, csv or binary (default: from extension)")
	encodeCmd.Flags().StringVar(&encodeName, "name", "", "File name carried in the end frame (default: file base name without extension)")
	encodeCmd.Flags().IntVar(&encodeChunkSize, "chunk-size", 0, "Payload bytes per chunk (default: 64, grown to fit 255 chunks)")
	encodeCmd.Flags().StringVar(&encodePort, "port", "", "Write frames to this serial port instead of stdout")

	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(encodeCmd)
}

// decodeStats counts what a replay produced
type decodeStats struct {
	transfers int
	failed    int
	positions int
	lines     int
}

func (s *decodeStats) handler() stream.Handler {
	return stream.HandlerFuncs{
		OnTransferComplete: func(*protocol.CompletedTransfer) { s.transfers++ },
		OnTransferFailed:   func(error) { s.failed++ },
		OnPositionUpdate:   func(telemetry.Event) { s.positions++ },
		OnLogLine:          func(stream.Line) { s.lines++ },
	}
}

func runDecode(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	opts := cfg.StreamOptions()
	if decodeStrictHex {
		opts.StrictHex = true
	}

	stats := &decodeStats{}
	handlers := []stream.Handler{consoleHandler(os.Stdout, decodePositions), stats.handler()}
	if decodeOutput != "" {
		store := sink.NewStore(decodeOutput)
		store.OnSaved = func(path string) { fmt.Printf("-- saved %s\n", path) }
		handlers = append(handlers, store)
	}

	d := stream.NewDispatcher(stream.Multi(handlers...), opts)
	n, err := capture.Replay(f, d.Feed)
	d.Flush()
	if err != nil {
		return err
	}

	fmt.Printf("-- replayed %s fragments: %d lines, %d transfers, %d failed, %d positions\n",
		humanize.Comma(int64(n)), stats.lines, stats.transfers, stats.failed, stats.positions)
	return nil
}

// fileTypeFor picks the FT file type from an explicit name or the extension
func fileTypeFor(path, explicit string) (protocol.FileType, error) {
	kind := strings.ToLower(explicit)
	if kind == "" {
		kind = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch kind {
	case "json":
		return protocol.FileTypeJSON, nil
	case "csv":
		return protocol.FileTypeCSV, nil
	case "binary", "bin":
		return protocol.FileTypeBinary, nil
	}
	if explicit != "" {
		return 0, fmt.Errorf("unknown file type %q (valid: json, csv, binary)", explicit)
	}
	return protocol.FileTypeBinary, nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	ft, err := fileTypeFor(args[0], encodeType)
	if err != nil {
		return err
	}
	name := encodeName
	if name == "" {
		base := filepath.Base(args[0])
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	frames, err := protocol.EncodeTransfer(data, ft, name, encodeChunkSize)
	if err != nil {
		return err
	}

	if encodePort == "" {
		for _, frame := range frames {
			fmt.Println(frame)
		}
		return nil
	}

	port, err := openPort(cfg, encodePort)
	if err != nil {
		return err
	}
	defer port.Close()

	for i, frame := range frames {
		if err := port.Send(frame); err != nil {
			return fmt.Errorf("frame %d of %d: %w", i+1, len(frames), err)
		}
	}
	fmt.Printf("Sent %s as %d frames (%s, %s) to %s\n",
		name, len(frames), ft.Kind(), humanize.Bytes(uint64(len(data))), port.Path())
	return nil
}
