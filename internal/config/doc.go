// Package config loads and saves the farmlink configuration file.
//
// The file is YAML and lives in the platform configuration directory:
//   - Linux: $XDG_CONFIG_HOME/farmlink/config.yaml or $HOME/.config/farmlink/config.yaml
//   - macOS: $HOME/.config/farmlink/config.yaml
//   - Windows: %LOCALAPPDATA%\farmlink\config.yaml
//
// A missing file is not an error; Load returns Default(). Keys missing from
// the file keep their defaults, so a file only needs the values it changes:
//
//	version: 1
//	serial:
//	    port: /dev/ttyACM0
//	heartbeat:
//	    interval: 2s
//
// Durations are Go duration strings. USB IDs may be written in hex (0x2E8A).
//
// # Thread Safety
//
// Save is protected by a mutex and writes through a temporary file that is
// renamed into place.
package config
