// Package logging provides structured logging for the farmlink bridge.
//
// This package wraps a package-level zap logger with convenience functions
// for the patterns the bridge uses: connection events on the serial port and
// the event feed, raw stream fragments, extracted frames and outbound
// commands.
//
// # Log Levels
//
//   - Debug: raw fragments (hex + ascii), frames, JSON blocks, positions
//   - Info: received robot lines, commands sent, ports opened and closed
//   - Warn: robot alerts, checksum and size mismatches, malformed frames
//   - Error: abandoned transfers, failures to save or record
//
// # Configuration
//
// Logging is silent until a level is given, either to Initialize or through
// the FARMLINK_LOG_LEVEL environment variable:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// The terminal monitor owns the screen, so it logs with InitializeToFile.
//
// # Specialized Logging
//
//	logging.LogConnection("/dev/ttyACM0", "opened")
//	logging.LogFragment("rx", fragment)
//	logging.LogFrame(frame.TypeName(), len(frame.Fields), frame.Raw)
//	logging.LogCommand("20,0")
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. Initialize and SetLogger
// are meant to be called once at startup.
package logging
