package syncer

import (
	"context"
	"errors"
	"maps"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"pdfrag/internal/chunkid"
	"pdfrag/internal/models"
	"pdfrag/internal/syncer/mocks"
)

// memIndex keeps inserted chunks in memory and counts writes per id.
type memIndex struct {
	chunks map[string]models.Chunk
	writes map[string]int
}

func newMemIndex() *memIndex {
	return &memIndex{chunks: map[string]models.Chunk{}, writes: map[string]int{}}
}

func (m *memIndex) ListExistingIDs(context.Context) (map[string]struct{}, error) {
	ids := make(map[string]struct{}, len(m.chunks))
	for id := range m.chunks {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (m *memIndex) InsertBatch(_ context.Context, chunks []models.Chunk) error {
	for _, c := range chunks {
		m.chunks[c.ID] = c
		m.writes[c.ID]++
	}
	return nil
}

func pageChunks(source string, pages ...int) models.OrderedChunks {
	var chunks models.OrderedChunks
	for _, p := range pages {
		chunks = append(chunks, models.Chunk{
			Content: "text",
			Source:  source,
			Page:    models.PageNumber(p),
		})
	}
	return chunkid.Assign(chunks)
}

func TestSynchronize_Scenario(t *testing.T) {
	ctx := context.Background()
	index := newMemIndex()
	chunks := pageChunks("a.pdf", 0, 0, 1)
	require.Equal(t, []string{"a.pdf:0:0", "a.pdf:0:1", "a.pdf:1:0"}, chunks.IDs())

	report, err := Synchronize(ctx, chunks, index)
	require.NoError(t, err)
	assert.Equal(t, models.SyncReport{Existing: 0, New: 3, Skipped: 0}, report)

	report, err = Synchronize(ctx, chunks, index)
	require.NoError(t, err)
	assert.Equal(t, models.SyncReport{Existing: 3, New: 0, Skipped: 3}, report)
}

func TestSynchronize_Idempotent(t *testing.T) {
	ctx := context.Background()
	index := newMemIndex()
	chunks := pageChunks("a.pdf", 0, 0, 1, 2)

	_, err := Synchronize(ctx, chunks, index)
	require.NoError(t, err)
	before := maps.Clone(index.chunks)

	report, err := Synchronize(ctx, chunks, index)
	require.NoError(t, err)
	assert.Zero(t, report.New)
	assert.Equal(t, 4, report.Existing)
	assert.Equal(t, before, index.chunks)
	for id, n := range index.writes {
		assert.Equal(t, 1, n, "id %s written more than once", id)
	}
}

func TestSynchronize_Superset(t *testing.T) {
	ctx := context.Background()
	index := newMemIndex()

	_, err := Synchronize(ctx, pageChunks("a.pdf", 0, 0), index)
	require.NoError(t, err)

	superset := append(pageChunks("a.pdf", 0, 0), pageChunks("b.pdf", 0)...)
	report, err := Synchronize(ctx, superset, index)
	require.NoError(t, err)
	assert.Equal(t, models.SyncReport{Existing: 2, New: 1, Skipped: 2}, report)
	assert.Contains(t, index.chunks, "b.pdf:0:0")
	for id, n := range index.writes {
		assert.Equal(t, 1, n, "id %s written more than once", id)
	}
}

func TestSynchronize_ExistingEntriesNotMutated(t *testing.T) {
	ctx := context.Background()
	index := newMemIndex()
	original := pageChunks("a.pdf", 0)

	_, err := Synchronize(ctx, original, index)
	require.NoError(t, err)

	changed := pageChunks("a.pdf", 0)
	changed[0].Content = "edited text"
	_, err = Synchronize(ctx, changed, index)
	require.NoError(t, err)

	assert.Equal(t, "text", index.chunks["a.pdf:0:0"].Content)
}

func TestSynchronize_WritesOnlyNewInOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	index := mocks.NewMockIndex(ctrl)
	chunks := pageChunks("a.pdf", 0, 0, 1, 1)

	index.EXPECT().ListExistingIDs(gomock.Any()).Return(map[string]struct{}{
		"a.pdf:0:1": {},
		"a.pdf:1:0": {},
	}, nil)
	index.EXPECT().InsertBatch(gomock.Any(), []models.Chunk{chunks[0], chunks[3]}).Return(nil)

	report, err := Synchronize(context.Background(), chunks, index)
	require.NoError(t, err)
	assert.Equal(t, models.SyncReport{Existing: 2, New: 2, Skipped: 2}, report)
}

func TestSynchronize_NothingNewSkipsWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	index := mocks.NewMockIndex(ctrl)

	index.EXPECT().ListExistingIDs(gomock.Any()).Return(map[string]struct{}{"a.pdf:0:0": {}}, nil)
	index.EXPECT().InsertBatch(gomock.Any(), gomock.Any()).Times(0)

	report, err := Synchronize(context.Background(), pageChunks("a.pdf", 0), index)
	require.NoError(t, err)
	assert.Equal(t, models.SyncReport{Existing: 1, New: 0, Skipped: 1}, report)
}

func TestSynchronize_EmptyBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	index := mocks.NewMockIndex(ctrl)

	index.EXPECT().ListExistingIDs(gomock.Any()).Return(map[string]struct{}{}, nil)

	report, err := Synchronize(context.Background(), nil, index)
	require.NoError(t, err)
	assert.Equal(t, models.SyncReport{}, report)
}

func TestSynchronize_Errors(t *testing.T) {
	storeDown := errors.New("store down")

	tests := []struct {
		name    string
		chunks  models.OrderedChunks
		setup   func(index *mocks.MockIndex)
		wantErr error
	}{
		{
			name: "duplicate id rejected before any read",
			chunks: models.OrderedChunks{
				{ID: "a.pdf:0:0", Source: "a.pdf"},
				{ID: "a.pdf:0:0", Source: "a.pdf"},
			},
			setup:   func(index *mocks.MockIndex) {},
			wantErr: models.ErrDuplicateChunkID,
		},
		{
			name:    "missing id rejected",
			chunks:  models.OrderedChunks{{Source: "a.pdf", Content: "x"}},
			setup:   func(index *mocks.MockIndex) {},
			wantErr: models.ErrMissingChunkID,
		},
		{
			name:   "store read failure",
			chunks: pageChunks("a.pdf", 0),
			setup: func(index *mocks.MockIndex) {
				index.EXPECT().ListExistingIDs(gomock.Any()).Return(nil, storeDown)
			},
			wantErr: models.ErrStoreUnavailable,
		},
		{
			name:   "write failure",
			chunks: pageChunks("a.pdf", 0),
			setup: func(index *mocks.MockIndex) {
				index.EXPECT().ListExistingIDs(gomock.Any()).Return(map[string]struct{}{}, nil)
				index.EXPECT().InsertBatch(gomock.Any(), gomock.Any()).Return(storeDown)
			},
			wantErr: models.ErrWriteFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			index := mocks.NewMockIndex(ctrl)
			tt.setup(index)

			report, err := Synchronize(context.Background(), tt.chunks, index)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, models.SyncReport{}, report)
		})
	}
}
