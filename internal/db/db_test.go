package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"pdfrag/internal/models"
)

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "store", "ledger.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestConnectDB_SQLite(t *testing.T) {
	ctx := context.Background()
	sqldb, d, err := ConnectDB(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	require.NoError(t, err)
	assert.Equal(t, dialect.SQLite, d.Name())

	db := NewDB(sqldb, d, true)
	defer db.Close()
	require.NoError(t, InitDB(ctx, db))

	n, err := CountChunks(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testChunk(id, source string, page, ordinal int) models.Chunk {
	return models.Chunk{
		ID:      id,
		Source:  source,
		Page:    models.PageNumber(page),
		Ordinal: ordinal,
		Content: "content of " + id,
	}
}

func TestListIDs_EmptyLedger(t *testing.T) {
	db := openTestDB(t)

	ids, err := ListIDs(context.Background(), db)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStoreChunks_ListAndCount(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	chunks := []models.Chunk{
		testChunk("a.pdf:0:0", "a.pdf", 0, 0),
		testChunk("a.pdf:0:1", "a.pdf", 0, 1),
		testChunk("a.pdf:1:0", "a.pdf", 1, 0),
	}
	require.NoError(t, StoreChunks(ctx, db, chunks, "run-1"))

	ids, err := ListIDs(ctx, db)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.pdf:0:0", "a.pdf:0:1", "a.pdf:1:0"}, ids)

	n, err := CountChunks(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStoreChunks_ExistingIDsUntouched(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	first := testChunk("a.pdf:0:0", "a.pdf", 0, 0)
	require.NoError(t, StoreChunks(ctx, db, []models.Chunk{first}, "run-1"))

	changed := first
	changed.Content = "different text"
	require.NoError(t, StoreChunks(ctx, db, []models.Chunk{changed, testChunk("a.pdf:0:1", "a.pdf", 0, 1)}, "run-2"))

	var record ChunkRecord
	require.NoError(t, db.NewSelect().Model(&record).Where("id = ?", "a.pdf:0:0").Scan(ctx))
	assert.Equal(t, "run-1", record.RunID)
	assert.Equal(t, ContentHash(first.Content), record.ContentHash)

	n, err := CountChunks(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStoreChunks_Empty(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, StoreChunks(context.Background(), db, nil, "run-1"))
}

func TestDropChunks(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, StoreChunks(ctx, db, []models.Chunk{testChunk("a.pdf:0:0", "a.pdf", 0, 0)}, "run-1"))

	require.NoError(t, DropChunks(ctx, db))
	require.NoError(t, InitDB(ctx, db))

	n, err := CountChunks(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewChunkRecord_NoPage(t *testing.T) {
	record := NewChunkRecord(models.Chunk{ID: "notes.txt::0", Source: "notes.txt", Content: "x"}, "run")
	assert.Equal(t, "", record.Page)
	assert.Equal(t, ContentHash("x"), record.ContentHash)
}

func TestIsPostgres(t *testing.T) {
	assert.True(t, isPostgres("postgres://user@localhost:5432/pdfrag"))
	assert.True(t, isPostgres("postgresql://localhost/pdfrag"))
	assert.False(t, isPostgres("./database/ledger.db"))
}
