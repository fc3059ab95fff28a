package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/muurk/farmlink/internal/config"
	"github.com/muurk/farmlink/internal/protocol"
	"github.com/muurk/farmlink/internal/serial"
	"github.com/muurk/farmlink/internal/stream"
	"github.com/muurk/farmlink/internal/telemetry"
)

// consoleHandler prints stream events as plain text. Robot lines are printed
// as received; everything the bridge adds is prefixed with "--".
func consoleHandler(out io.Writer, showPositions bool) stream.Handler {
	return stream.HandlerFuncs{
		OnLogLine: func(l stream.Line) {
			if l.Alert {
				fmt.Fprintf(out, "! %s\n", l.Text)
				return
			}
			fmt.Fprintln(out, l.Text)
		},
		OnJSONBlock: func(b stream.JSONBlock) {
			state := "valid"
			if !b.Valid {
				state = "invalid"
			}
			fmt.Fprintf(out, "-- JSON block (%s, %s)\n%s\n", state, humanize.Bytes(uint64(len(b.Text))), b.Text)
		},
		OnPositionUpdate: func(ev telemetry.Event) {
			if showPositions {
				fmt.Fprintf(out, "-- position (%g, %g)\n", ev.X, ev.Y)
			}
		},
		OnTransferComplete: func(t *protocol.CompletedTransfer) {
			fmt.Fprintf(out, "-- received %s\n", describeTransfer(t))
		},
		OnTransferFailed: func(err error) {
			fmt.Fprintf(out, "-- transfer failed: %v\n", err)
		},
	}
}

func describeTransfer(t *protocol.CompletedTransfer) string {
	name := t.FileName
	if name == "" {
		name = "unnamed file"
	}
	s := fmt.Sprintf("%s (%s, %s, %d chunks)", name, t.Kind(), humanize.Bytes(uint64(len(t.Raw))), t.Chunks)
	if !t.ChecksumOK {
		s += " [checksum mismatch]"
	}
	return s
}

// resolvePort returns the explicit port or the first robot found on USB
func resolvePort(c *config.Config, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if c.Serial.Port != "" {
		return c.Serial.Port, nil
	}
	return serial.AutoDetect(c.Serial.USBFilters)
}

// openPort opens the robot's serial port using the config's settings
func openPort(c *config.Config, explicit string) (*serial.Port, error) {
	path, err := resolvePort(c, explicit)
	if err != nil {
		return nil, err
	}
	return serial.Open(path, c.SerialOptions())
}
