package models

import "time"

// Status is the sync state of a response record
type Status string

const (
	StatusDraft  Status = "draft"
	StatusSynced Status = "synced"
)

// Photo is a reference to an uploaded photo in object storage
type Photo struct {
	Path        string  `json:"path"`
	Coordinates *string `json:"coordinates"`
}

// ResponseRecord is one filled-out inspection form
type ResponseRecord struct {
	ID        string             `json:"id"`
	FormID    string             `json:"form_id"`
	FormTitle string             `json:"formTitle"`
	Answers   map[string]any     `json:"answers"`
	Photos    map[string][]Photo `json:"photos"`
	Status    Status             `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

// IsPending reports whether the record still has to be sent to the remote store.
func (r ResponseRecord) IsPending() bool {
	return r.Status == StatusDraft
}

// Payload builds what gets sent to the remote store: the record without its
// local id and already marked as synced.
func (r ResponseRecord) Payload() RecordPayload {
	return RecordPayload{
		FormID:    r.FormID,
		FormTitle: r.FormTitle,
		Answers:   r.Answers,
		Photos:    r.Photos,
		Status:    StatusSynced,
		CreatedAt: r.CreatedAt,
	}
}

// RecordPayload is a ResponseRecord as seen by the remote store
type RecordPayload struct {
	FormID    string             `json:"form_id"`
	FormTitle string             `json:"formTitle"`
	Answers   map[string]any     `json:"answers"`
	Photos    map[string][]Photo `json:"photos"`
	Status    Status             `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}
