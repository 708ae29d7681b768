package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/seenimoa/pvbench/internal/store"
	"github.com/seenimoa/pvbench/pkg/models"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	blobs, err := store.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return NewLedger(blobs)
}

func outcome(fid string, year int, status models.OutcomeStatus) models.FetchOutcome {
	return models.FetchOutcome{
		FacilityID:  fid,
		Year:        year,
		Status:      status,
		Source:      "nsrdb",
		CompletedAt: time.Now(),
	}
}

func TestLedgerRoundtrip(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	if _, ok, err := l.Get(ctx, "f1", 2020); err != nil || ok {
		t.Fatalf("empty ledger: ok=%v err=%v", ok, err)
	}

	if err := l.Record(ctx, outcome("f1", 2020, models.OutcomeSuccess), false); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, ok, err := l.Get(ctx, "f1", 2020)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Status != models.OutcomeSuccess || got.Source != "nsrdb" {
		t.Errorf("got %+v", got)
	}
}

func TestLedgerRejectsNonTerminal(t *testing.T) {
	l := testLedger(t)

	if err := l.Record(context.Background(), models.FetchOutcome{FacilityID: "f1", Year: 2020}, false); err == nil {
		t.Error("non-terminal outcome must be refused")
	}
}

func TestLedgerPreservesExistingUnlessForced(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	_ = l.Record(ctx, outcome("f1", 2020, models.OutcomeSuccess), false)

	// A later non-forced write does not clobber the earlier result.
	later := outcome("f1", 2020, models.OutcomeFailure)
	later.Reason = "should not land"
	if err := l.Record(ctx, later, false); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, _, _ := l.Get(ctx, "f1", 2020)
	if got.Status != models.OutcomeSuccess {
		t.Errorf("status after non-forced write: got %s, want success", got.Status)
	}

	// Forced writes win.
	if err := l.Record(ctx, later, true); err != nil {
		t.Fatalf("forced Record: %v", err)
	}
	got, _, _ = l.Get(ctx, "f1", 2020)
	if got.Status != models.OutcomeFailure {
		t.Errorf("status after forced write: got %s, want failure", got.Status)
	}
}

func TestLedgerSnapshotOrdering(t *testing.T) {
	l := testLedger(t)
	ctx := context.Background()

	_ = l.Record(ctx, outcome("f2", 2020, models.OutcomeSuccess), false)
	_ = l.Record(ctx, outcome("f1", 2021, models.OutcomePartial), false)
	_ = l.Record(ctx, outcome("f1", 2020, models.OutcomeFailure), false)

	snap, err := l.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap) != 3 {
		t.Fatalf("entries: got %d, want 3", len(snap))
	}
	want := []struct {
		fid  string
		year int
	}{{"f1", 2020}, {"f1", 2021}, {"f2", 2020}}
	for i, w := range want {
		if snap[i].FacilityID != w.fid || snap[i].Year != w.year {
			t.Errorf("snapshot[%d]: got %s/%d, want %s/%d", i, snap[i].FacilityID, snap[i].Year, w.fid, w.year)
		}
	}
}
