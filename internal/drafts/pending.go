package drafts

import (
	"time"

	"github.com/chmdznr/fieldsync/pkg/models"
)

// FilterPending returns the records still in draft status, in input order.
func FilterPending(records []models.ResponseRecord) []models.ResponseRecord {
	pending := make([]models.ResponseRecord, 0, len(records))
	for _, r := range records {
		if r.IsPending() {
			pending = append(pending, r)
		}
	}
	return pending
}

// Reconcile returns a copy of all in which every record whose id is in
// succeeded is marked synced. Nothing else changes.
func Reconcile(all []models.ResponseRecord, succeeded map[string]struct{}) []models.ResponseRecord {
	out := make([]models.ResponseRecord, len(all))
	copy(out, all)
	if len(succeeded) == 0 {
		return out
	}
	for i := range out {
		if _, ok := succeeded[out[i].ID]; ok {
			out[i].Status = models.StatusSynced
		}
	}
	return out
}

// Stats summarizes a collection.
func Stats(records []models.ResponseRecord) models.Stats {
	var stats models.Stats
	for _, r := range records {
		photos := int64(0)
		for _, list := range r.Photos {
			photos += int64(len(list))
		}
		stats.TotalRecords++
		stats.TotalPhotos += photos
		switch r.Status {
		case models.StatusDraft:
			stats.DraftRecords++
			stats.DraftPhotos += photos
			if stats.OldestDraft.IsZero() || r.CreatedAt.Before(stats.OldestDraft) {
				stats.OldestDraft = r.CreatedAt
			}
		case models.StatusSynced:
			stats.SyncedRecords++
		}
	}
	return stats
}

// ISOTimestamp formats t the way draft ids and photo names embed it,
// e.g. 2025-03-04T10:11:12.345Z.
func ISOTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
