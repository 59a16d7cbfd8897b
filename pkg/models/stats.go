package models

import "time"

// Stats represents local store statistics
type Stats struct {
	TotalRecords  int64
	DraftRecords  int64
	SyncedRecords int64
	TotalPhotos   int64
	DraftPhotos   int64
	OldestDraft   time.Time // zero when nothing is pending
}

// SyncOutcome is the result of pushing one batch of pending records
type SyncOutcome struct {
	Attempted    int
	Succeeded    int
	FailedIDs    map[string]struct{}
	SucceededIDs map[string]struct{}
}

// NewSyncOutcome returns an empty outcome with its id sets allocated.
func NewSyncOutcome() SyncOutcome {
	return SyncOutcome{
		FailedIDs:    map[string]struct{}{},
		SucceededIDs: map[string]struct{}{},
	}
}
