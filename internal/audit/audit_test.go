package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_PolicyDecisionRoundTrip(t *testing.T) {
	j := openTestJournal(t)

	j.PolicyDecision("coingecko", "display", false)
	j.PolicyDecision("binance", "display", true)

	// The writer loop batches; give it a couple of flush intervals.
	deadline := time.Now().Add(2 * time.Second)
	var rows []Record
	for time.Now().Before(deadline) {
		var err error
		rows, err = j.Recent(10)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(rows) == 2 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	// Newest first.
	if rows[0].SourceID != "binance" || rows[0].Outcome != "allowed" {
		t.Errorf("row 0 wrong: %+v", rows[0])
	}
	if rows[1].SourceID != "coingecko" || rows[1].Outcome != "denied" {
		t.Errorf("row 1 wrong: %+v", rows[1])
	}
}

func TestJournal_CloseFlushesPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	for i := 0; i < 10; i++ {
		j.Fetch("binance", "bitcoin", "ok")
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	rows, err := reopened.Recent(100)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(rows) != 10 {
		t.Errorf("expected 10 rows after close flush, got %d", len(rows))
	}
}
