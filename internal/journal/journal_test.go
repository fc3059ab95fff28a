package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/muurk/farmlink/internal/protocol"
	"github.com/muurk/farmlink/internal/telemetry"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "db", "journal.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_Transfers(t *testing.T) {
	j := openTest(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return at }

	j.TransferComplete(&protocol.CompletedTransfer{
		FileName:   "moisture.csv",
		FileType:   protocol.FileTypeCSV,
		Raw:        []byte("a,b\n"),
		Chunks:     1,
		ChecksumOK: true,
		ReceivedAt: at,
	})
	j.TransferFailed(protocol.ErrMissingChunks)

	got, err := j.RecentTransfers(10)
	if err != nil {
		t.Fatalf("RecentTransfers() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("RecentTransfers() = %d rows, want 2", len(got))
	}

	failed, done := got[0], got[1]
	if failed.Status != StatusFailed || failed.Error != "MissingChunks" {
		t.Errorf("failed row = %+v", failed)
	}
	if done.Status != StatusComplete || done.FileName != "moisture.csv" || done.Kind != "CSV" ||
		done.Size != 4 || !done.ChecksumOK || !done.ReceivedAt.Equal(at) {
		t.Errorf("complete row = %+v", done)
	}
}

func TestJournal_Positions(t *testing.T) {
	j := openTest(t)
	for i := 0; i < 5; i++ {
		j.PositionUpdate(telemetry.Event{X: float64(i), Y: float64(i * 2), Z: telemetry.Visible})
	}

	got, err := j.RecentPositions(3)
	if err != nil {
		t.Fatalf("RecentPositions() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("RecentPositions() = %d rows, want 3", len(got))
	}
	if got[0].X != 4 || got[0].Y != 8 {
		t.Errorf("newest position = %+v, want (4, 8)", got[0])
	}
}

func TestJournal_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	j.PositionUpdate(telemetry.Event{X: 1, Y: 1})
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}

	j, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer j.Close()
	got, err := j.RecentPositions(10)
	if err != nil || len(got) != 1 {
		t.Errorf("after reopen positions = %v, %v", got, err)
	}
}
