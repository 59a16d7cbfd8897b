package drafts

import (
	"strings"
	"testing"
	"time"

	"github.com/chmdznr/fieldsync/pkg/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func ids(records []models.ResponseRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestFilterPending(t *testing.T) {
	records := sampleRecords()

	pending := FilterPending(records)
	assert.Equal(t, []string{"offline_a", "offline_c"}, ids(pending))
	for _, r := range pending {
		assert.Equal(t, models.StatusDraft, r.Status)
	}

	if diff := cmp.Diff(pending, FilterPending(pending)); diff != "" {
		t.Errorf("FilterPending is not idempotent (-first +second):\n%s", diff)
	}
}

func TestFilterPendingEmpty(t *testing.T) {
	assert.Empty(t, FilterPending(nil))
	assert.NotNil(t, FilterPending(nil))
	assert.Empty(t, FilterPending([]models.ResponseRecord{}))
}

func TestReconcileEmptySetIsNoop(t *testing.T) {
	records := sampleRecords()
	if diff := cmp.Diff(records, Reconcile(records, nil)); diff != "" {
		t.Errorf("Reconcile(R, nil) changed records:\n%s", diff)
	}
	if diff := cmp.Diff(records, Reconcile(records, map[string]struct{}{})); diff != "" {
		t.Errorf("Reconcile(R, {}) changed records:\n%s", diff)
	}
}

func TestReconcileOnlyFlipsStatus(t *testing.T) {
	records := sampleRecords()
	out := Reconcile(records, map[string]struct{}{"offline_c": {}, "unknown": {}})

	want := sampleRecords()
	want[2].Status = models.StatusSynced
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("Reconcile mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, models.StatusDraft, records[2].Status, "input must not be mutated")
}

func TestReconcileKeepsSyncedRecords(t *testing.T) {
	records := sampleRecords()
	out := Reconcile(records, map[string]struct{}{"offline_b": {}})
	assert.Equal(t, models.StatusSynced, out[1].Status)
	assert.Len(t, out, len(records))
}

func TestStats(t *testing.T) {
	stats := Stats(sampleRecords())
	assert.Equal(t, int64(3), stats.TotalRecords)
	assert.Equal(t, int64(2), stats.DraftRecords)
	assert.Equal(t, int64(1), stats.SyncedRecords)
	assert.Equal(t, int64(2), stats.TotalPhotos)
	assert.Equal(t, int64(2), stats.DraftPhotos)
	assert.True(t, stats.OldestDraft.Equal(time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)))

	assert.True(t, Stats(nil).OldestDraft.IsZero())
}

func TestNewDraft(t *testing.T) {
	now := time.Date(2025, 3, 4, 10, 11, 12, 345678901, time.FixedZone("BRT", -3*3600))
	photos := map[string][]models.Photo{
		"qualidade_geral": {{Path: "9/qualidade_geral/x.jpg"}, {Path: "9/qualidade_geral/y.jpg"}},
	}

	r := NewDraft("9", "Pavimentação", map[string]any{"empresa": "X"}, photos, now)

	assert.Equal(t, "offline_2025-03-04T13:11:12.345Z", r.ID)
	assert.True(t, strings.HasPrefix(r.ID, DraftIDPrefix))
	assert.Equal(t, models.StatusDraft, r.Status)
	assert.Equal(t, "9", r.FormID)
	assert.Equal(t, "Pavimentação", r.FormTitle)
	assert.Equal(t, time.UTC, r.CreatedAt.Location())
	assert.Equal(t, 345000000, r.CreatedAt.Nanosecond())
	assert.Equal(t, "X", r.Answers["empresa"])
	assert.Equal(t, []any{"9/qualidade_geral/x.jpg", "9/qualidade_geral/y.jpg"}, r.Answers["qualidade_geral_photos"])
}

func TestNewDraftWithoutPhotos(t *testing.T) {
	r := NewDraft("1", "Obra", nil, nil, time.Now())
	assert.NotNil(t, r.Answers)
	assert.NotNil(t, r.Photos)
	assert.Empty(t, r.Photos)
}
