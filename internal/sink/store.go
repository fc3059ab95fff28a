// Package sink writes completed file transfers to disk.
package sink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/muurk/farmlink/internal/logging"
	"github.com/muurk/farmlink/internal/protocol"
	"github.com/muurk/farmlink/internal/stream"
)

// DefaultFileName is used when the robot sends no file name
const DefaultFileName = "downloaded_file"

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Store saves every completed transfer under Dir. It implements
// stream.Handler; only TransferComplete does anything.
type Store struct {
	stream.NopHandler

	Dir string

	// OnSaved, when set, is called with the path of every saved file
	OnSaved func(path string)
}

// NewStore creates a store writing to dir
func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// TransferComplete saves t, logging any failure
func (s *Store) TransferComplete(t *protocol.CompletedTransfer) {
	path, err := s.Save(t)
	if err != nil {
		logging.Error("Failed to save transfer",
			zap.String("file_name", t.FileName),
			zap.Error(err),
		)
		return
	}
	if s.OnSaved != nil {
		s.OnSaved(path)
	}
}

// Save writes t and returns the path written. JSON is pretty-printed, CSV
// written verbatim and anything else as raw bytes. Existing files are never
// overwritten; a numeric suffix is added instead.
func (s *Store) Save(t *protocol.CompletedTransfer) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := FileName(t)
	data, err := Render(t)
	if err != nil {
		return "", err
	}

	path, f, err := createUnique(s.Dir, name)
	if err != nil {
		return "", err
	}
	if err := writeNew(path, f, data); err != nil {
		return "", err
	}

	logging.Info("Saved transfer",
		zap.String("path", path),
		zap.String("kind", t.Kind()),
		zap.String("size", humanize.Bytes(uint64(len(data)))),
	)
	return path, nil
}

// FileName returns the name a transfer is saved under: the robot's name
// reduced to its base name, or DefaultFileName, with the kind's extension
// ensured
func FileName(t *protocol.CompletedTransfer) string {
	name := strings.TrimSpace(t.FileName)
	// The robot may send paths from its own filesystem
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		name = DefaultFileName
	}

	switch t.FileType {
	case protocol.FileTypeJSON:
		if !strings.HasSuffix(name, ".json") {
			name += ".json"
		}
	case protocol.FileTypeCSV:
		if !strings.HasSuffix(name, ".csv") {
			name += ".csv"
		}
	}
	return name
}

// Render returns the bytes written for t
func Render(t *protocol.CompletedTransfer) ([]byte, error) {
	switch t.FileType {
	case protocol.FileTypeJSON:
		// Text that did not parse is written as received
		if !t.Parsed {
			if text, ok := t.Data.(string); ok {
				return []byte(text), nil
			}
			return t.Raw, nil
		}
		out, err := jsonAPI.MarshalIndent(t.Data, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to format JSON transfer: %w", err)
		}
		return append(out, '\n'), nil
	case protocol.FileTypeCSV:
		if text, ok := t.Data.(string); ok {
			return []byte(text), nil
		}
		return t.Raw, nil
	default:
		return t.Raw, nil
	}
}

// writeNew writes data to the file just created at path. A partial file is
// removed.
func writeNew(path string, f io.WriteCloser, data []byte) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

func createUnique(dir, name string) (string, *os.File, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < 1000; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return path, f, nil
		}
		if !os.IsExist(err) {
			return "", nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
	}
	return "", nil, fmt.Errorf("too many files named %s in %s", name, dir)
}
