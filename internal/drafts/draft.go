package drafts

import (
	"time"

	"github.com/chmdznr/fieldsync/pkg/models"
)

// DraftIDPrefix marks ids generated on the device before any sync.
const DraftIDPrefix = "offline_"

// NewDraftID derives a local id from the creation time.
func NewDraftID(createdAt time.Time) string {
	return DraftIDPrefix + ISOTimestamp(createdAt)
}

// NewDraft builds a draft record for one form submission. Photo paths are
// also listed under the "<question>_photos" answer key.
func NewDraft(formID, formTitle string, answers map[string]any, photos map[string][]models.Photo, now time.Time) models.ResponseRecord {
	createdAt := now.UTC().Truncate(time.Millisecond)

	merged := make(map[string]any, len(answers)+len(photos))
	for k, v := range answers {
		merged[k] = v
	}
	if photos == nil {
		photos = map[string][]models.Photo{}
	}
	for questionID, list := range photos {
		if len(list) == 0 {
			continue
		}
		paths := make([]any, 0, len(list))
		for _, p := range list {
			paths = append(paths, p.Path)
		}
		merged[questionID+"_photos"] = paths
	}

	return models.ResponseRecord{
		ID:        NewDraftID(createdAt),
		FormID:    formID,
		FormTitle: formTitle,
		Answers:   merged,
		Photos:    photos,
		Status:    models.StatusDraft,
		CreatedAt: createdAt,
	}
}
