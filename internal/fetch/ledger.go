package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/seenimoa/pvbench/internal/store"
	"github.com/seenimoa/pvbench/pkg/models"
)

const ledgerPrefix = "ledger/"

// Ledger is the append-only record of batch fetch outcomes, keyed by
// (facility, year) and persisted in the blob store so an interrupted run
// can resume without redoing finished pairs. Prior terminal outcomes are
// never overwritten unless the caller forces a re-run.
type Ledger struct {
	blobs store.Store
}

// NewLedger creates a ledger over the given blob store.
func NewLedger(blobs store.Store) *Ledger {
	return &Ledger{blobs: blobs}
}

func ledgerKey(facilityID string, year int) string {
	return fmt.Sprintf("%s%s/%d.json", ledgerPrefix, facilityID, year)
}

// Get returns the recorded outcome for a pair, if any.
func (l *Ledger) Get(ctx context.Context, facilityID string, year int) (models.FetchOutcome, bool, error) {
	data, ok, err := l.blobs.Get(ctx, ledgerKey(facilityID, year))
	if err != nil {
		return models.FetchOutcome{}, false, fmt.Errorf("ledger get: %w", err)
	}
	if !ok {
		return models.FetchOutcome{}, false, nil
	}
	var out models.FetchOutcome
	if err := json.Unmarshal(data, &out); err != nil {
		return models.FetchOutcome{}, false, fmt.Errorf("ledger decode %s/%d: %w", facilityID, year, err)
	}
	return out, true, nil
}

// Record persists a terminal outcome. An existing terminal entry for the
// same pair is preserved unless force is set.
func (l *Ledger) Record(ctx context.Context, out models.FetchOutcome, force bool) error {
	if !out.Terminal() {
		return fmt.Errorf("ledger: refusing to record non-terminal outcome for %s/%d", out.FacilityID, out.Year)
	}
	if !force {
		if existing, ok, err := l.Get(ctx, out.FacilityID, out.Year); err != nil {
			return err
		} else if ok && existing.Terminal() {
			return nil
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("ledger encode: %w", err)
	}
	if err := l.blobs.Put(ctx, ledgerKey(out.FacilityID, out.Year), data); err != nil {
		return fmt.Errorf("ledger put: %w", err)
	}
	return nil
}

// Snapshot returns every recorded outcome, ordered by facility then year.
func (l *Ledger) Snapshot(ctx context.Context) ([]models.FetchOutcome, error) {
	infos, err := l.blobs.List(ctx, ledgerPrefix)
	if err != nil {
		return nil, fmt.Errorf("ledger list: %w", err)
	}

	outcomes := make([]models.FetchOutcome, 0, len(infos))
	for _, info := range infos {
		data, ok, err := l.blobs.Get(ctx, info.Key)
		if err != nil || !ok {
			continue
		}
		var out models.FetchOutcome
		if err := json.Unmarshal(data, &out); err != nil {
			continue
		}
		outcomes = append(outcomes, out)
	}
	sort.Slice(outcomes, func(i, j int) bool {
		if outcomes[i].FacilityID != outcomes[j].FacilityID {
			return outcomes[i].FacilityID < outcomes[j].FacilityID
		}
		return outcomes[i].Year < outcomes[j].Year
	})
	return outcomes, nil
}
