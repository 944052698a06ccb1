package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"

	"pdfrag/internal/models"
)

// ChunkRecord is one ledger row. The ledger mirrors the ids written to the
// vector collection so they can be listed without loading any embedding.
type ChunkRecord struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`
	ID            string    `bun:"id,pk"`
	Source        string    `bun:"source,notnull"`
	Page          string    `bun:"page,notnull"`
	Ordinal       int       `bun:"ordinal,notnull"`
	ContentHash   string    `bun:"content_hash,notnull"`
	RunID         string    `bun:"run_id"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// ConnectDB opens the ledger database. A postgres:// DSN selects Postgres;
// anything else is treated as a sqlite file path, created if missing.
func ConnectDB(dsn string) (*sql.DB, schema.Dialect, error) {
	if isPostgres(dsn) {
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), pgdialect.New(), nil
	}

	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	sqldb, err := sql.Open(sqliteshim.ShimName, "file:"+dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ledger %s: %w", dsn, err)
	}
	// sqlite allows a single writer
	sqldb.SetMaxOpenConns(1)
	return sqldb, sqlitedialect.New(), nil
}

func NewDB(sqldb *sql.DB, dialect schema.Dialect, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, dialect)
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// Open connects, wraps and initializes the ledger in one step.
func Open(ctx context.Context, dsn string, debug bool) (*bun.DB, error) {
	sqldb, dialect, err := ConnectDB(dsn)
	if err != nil {
		return nil, err
	}
	db := NewDB(sqldb, dialect, debug)
	if err := InitDB(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*ChunkRecord)(nil)).IfNotExists().Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}
	return nil
}

// ListIDs returns every id in the ledger. Only the id column is read.
func ListIDs(ctx context.Context, db bun.IDB) ([]string, error) {
	var ids []string
	err := db.NewSelect().
		Model((*ChunkRecord)(nil)).
		Column("id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunk ids: %w", err)
	}
	return ids, nil
}

// StoreChunks records chunks in one transaction. Ids already present are left
// untouched.
func StoreChunks(ctx context.Context, db *bun.DB, chunks []models.Chunk, runID string) error {
	if len(chunks) == 0 {
		return nil
	}
	records := make([]ChunkRecord, len(chunks))
	for i, c := range chunks {
		records[i] = NewChunkRecord(c, runID)
	}

	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&records).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert chunk records: %w", err)
		}
		return nil
	})
}

func CountChunks(ctx context.Context, db bun.IDB) (int, error) {
	n, err := db.NewSelect().Model((*ChunkRecord)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// DropChunks drops the ledger table.
func DropChunks(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*ChunkRecord)(nil)).IfExists().Exec(ctx)
	return err
}

func NewChunkRecord(c models.Chunk, runID string) ChunkRecord {
	return ChunkRecord{
		ID:          c.ID,
		Source:      c.Source,
		Page:        c.PageString(),
		Ordinal:     c.Ordinal,
		ContentHash: ContentHash(c.Content),
		RunID:       runID,
		CreatedAt:   time.Now().UTC(),
	}
}

func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}
