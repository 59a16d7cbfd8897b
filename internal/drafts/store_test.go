package drafts

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chmdznr/fieldsync/internal/db"
	"github.com/chmdznr/fieldsync/pkg/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memKV struct {
	mu     sync.Mutex
	values map[string]string
	getErr error
	putErr error
	puts   int
}

func newMemKV() *memKV {
	return &memKV{values: map[string]string{}}
}

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", db.ErrNotFound
	}
	return v, nil
}

func (m *memKV) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.values[key] = value
	return nil
}

func sampleRecords() []models.ResponseRecord {
	coords := "-25.43, -49.27"
	base := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	return []models.ResponseRecord{
		{
			ID:        "offline_a",
			FormID:    "1",
			FormTitle: "Escola Municipal",
			Answers:   map[string]any{"empresa": "Construtora X", "qualidade_geral": "Sim", "qualidade_geral_obs": "ok"},
			Photos: map[string][]models.Photo{
				"qualidade_geral": {{Path: "1/qualidade_geral/a.jpg", Coordinates: &coords}, {Path: "1/qualidade_geral/b.jpg"}},
			},
			Status:    models.StatusDraft,
			CreatedAt: base,
		},
		{
			ID:        "offline_b",
			FormID:    "1",
			FormTitle: "Escola Municipal",
			Answers:   map[string]any{"empresa": "Construtora Y"},
			Photos:    map[string][]models.Photo{},
			Status:    models.StatusSynced,
			CreatedAt: base.Add(time.Hour),
		},
		{
			ID:        "offline_c",
			FormID:    "2",
			FormTitle: "Ponte",
			Answers:   map[string]any{},
			Photos:    map[string][]models.Photo{},
			Status:    models.StatusDraft,
			CreatedAt: base.Add(2 * time.Hour),
		},
	}
}

func TestLoadAllMissingKeyIsEmpty(t *testing.T) {
	store := NewStore(newMemKV(), nil)
	got := store.LoadAll(context.Background())
	require.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, FilterPending(got))
}

func TestLoadAllFailsSoft(t *testing.T) {
	tests := []struct {
		name  string
		setup func(kv *memKV)
	}{
		{"malformed json", func(kv *memKV) { kv.values[ResponsesKey] = "{not json" }},
		{"json null", func(kv *memKV) { kv.values[ResponsesKey] = "null" }},
		{"read error", func(kv *memKV) { kv.getErr = errors.New("disk I/O error") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := newMemKV()
			tt.setup(kv)
			got := NewStore(kv, nil).LoadAll(context.Background())
			require.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestSaveAllLoadAllRoundTrip(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "fieldsync.db"))
	require.NoError(t, err)
	defer database.Close()

	ctx := context.Background()
	store := NewStore(database, nil)
	require.NoError(t, store.SaveAll(ctx, sampleRecords()))

	before, err := database.Get(ctx, ResponsesKey)
	require.NoError(t, err)

	loaded := store.LoadAll(ctx)
	if diff := cmp.Diff(sampleRecords(), loaded); diff != "" {
		t.Fatalf("loaded records mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, store.SaveAll(ctx, loaded))
	after, err := database.Get(ctx, ResponsesKey)
	require.NoError(t, err)
	assert.Equal(t, before, after, "saveAll(loadAll()) must not change stored contents")
}

func TestSaveAllRejectsDuplicateIDs(t *testing.T) {
	kv := newMemKV()
	records := sampleRecords()
	records[2].ID = records[0].ID

	err := NewStore(kv, nil).SaveAll(context.Background(), records)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Zero(t, kv.puts)
}

func TestCheckUniqueIDs(t *testing.T) {
	records := sampleRecords()
	assert.NoError(t, CheckUniqueIDs(records))
	assert.NoError(t, CheckUniqueIDs(nil))

	records[2].ID = records[0].ID
	err := CheckUniqueIDs(records)
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.ErrorContains(t, err, "offline_a")
}

func TestSaveAllPropagatesWriteFailure(t *testing.T) {
	kv := newMemKV()
	kv.putErr = errors.New("database or disk is full")
	err := NewStore(kv, nil).SaveAll(context.Background(), sampleRecords())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk is full")
}

func TestAppend(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	store := NewStore(kv, nil)

	records := sampleRecords()
	require.NoError(t, store.Append(ctx, records[0]))
	require.NoError(t, store.Append(ctx, records[1]))

	err := store.Append(ctx, records[0])
	assert.ErrorIs(t, err, ErrDuplicateID)

	got := store.LoadAll(ctx)
	require.Len(t, got, 2)
	assert.Equal(t, "offline_a", got[0].ID)
	assert.Equal(t, "offline_b", got[1].ID)
}

func TestAppendDoesNotOverwriteCorruptCollection(t *testing.T) {
	kv := newMemKV()
	kv.values[ResponsesKey] = "[{broken"

	err := NewStore(kv, nil).Append(context.Background(), sampleRecords()[0])
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Equal(t, "[{broken", kv.values[ResponsesKey])
}

func TestUpdateWithoutChangeSkipsWrite(t *testing.T) {
	kv := newMemKV()
	store := NewStore(kv, nil)
	require.NoError(t, store.SaveAll(context.Background(), sampleRecords()))
	writes := kv.puts

	err := store.Update(context.Background(), func(r []models.ResponseRecord) ([]models.ResponseRecord, bool, error) {
		return r, false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, writes, kv.puts)
}

func TestConcurrentAppendsAreNotLost(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newMemKV(), nil)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := sampleRecords()[0]
			r.ID = NewDraftID(time.Unix(int64(i), 0))
			assert.NoError(t, store.Append(ctx, r))
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.LoadAll(ctx), n)
}
