package chromemdb

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"

	"pdfrag/internal/config"
	"pdfrag/internal/db"
	"pdfrag/internal/models"
)

// VectorDBManager is the persisted chunk store: a chromem-go collection for
// content and embeddings plus the id ledger. Open it once per process and
// Close it when done.
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	ledger        *bun.DB
	dbPath        string
	compress      bool
	encryptionKey string
	workers       int
	runID         string
}

// NewVectorDBManager opens (or creates) the store described by cfg. embed is
// used for both document and query vectors.
func NewVectorDBManager(ctx context.Context, cfg *config.Config, embed chromem.EmbeddingFunc) (*VectorDBManager, error) {
	chromemDB, err := chromem.NewPersistentDB(cfg.Store.Path, cfg.Store.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database %s: %v", models.ErrStoreUnavailable, cfg.Store.Path, err)
	}

	collection, err := chromemDB.GetOrCreateCollection(cfg.Store.Collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create/get collection: %v", models.ErrStoreUnavailable, err)
	}

	ledgerDSN := cfg.Ledger.DSN
	if ledgerDSN == "" {
		ledgerDSN = cfg.LedgerPath()
	}
	ledger, err := db.Open(ctx, ledgerDSN, cfg.Ledger.Debug)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open ledger: %v", models.ErrStoreUnavailable, err)
	}

	m := &VectorDBManager{
		db:            chromemDB,
		collection:    collection,
		ledger:        ledger,
		dbPath:        cfg.Store.Path,
		compress:      cfg.Store.Compress,
		encryptionKey: cfg.Store.EncryptionKey,
		workers:       cfg.Store.Workers,
	}
	if m.workers < 1 {
		m.workers = 1
	}

	log.Debug().
		Str("path", m.dbPath).
		Str("collection", collection.Name).
		Int("documents", collection.Count()).
		Msg("Opened vector database")
	return m, nil
}

// SetRunID tags ledger rows written from now on.
func (m *VectorDBManager) SetRunID(runID string) {
	m.runID = runID
}

// ListExistingIDs reads every stored chunk id from the ledger without touching
// contents or embeddings.
func (m *VectorDBManager) ListExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	ids, err := db.ListIDs(ctx, m.ledger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	existing := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		existing[id] = struct{}{}
	}
	return existing, nil
}

// InsertBatch embeds and persists chunks keyed by their ids. Chunks that were
// written are recorded in the ledger even when others fail, in which case an
// ErrWriteFailure is returned. Ids already present in the collection are never
// rewritten.
func (m *VectorDBManager) InsertBatch(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	var (
		mu     sync.Mutex
		landed = make([]models.Chunk, 0, len(chunks))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for _, chunk := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// a document without a ledger row is left as stored and only
			// recorded; GetByID errors only when the id is absent
			if stored, err := m.collection.GetByID(gctx, chunk.ID); err == nil {
				log.Warn().Str("id", chunk.ID).Msg("Document already in collection, recording in ledger")
				chunk.Content = stored.Content
				mu.Lock()
				landed = append(landed, chunk)
				mu.Unlock()
				return nil
			}
			doc := chromem.Document{
				ID:       chunk.ID,
				Content:  chunk.Content,
				Metadata: chunk.Metadata(),
			}
			if err := m.collection.AddDocument(gctx, doc); err != nil {
				return fmt.Errorf("failed to add document %q: %w", chunk.ID, err)
			}
			mu.Lock()
			landed = append(landed, chunk)
			mu.Unlock()
			return nil
		})
	}
	writeErr := g.Wait()

	if err := db.StoreChunks(ctx, m.ledger, landed, m.runID); err != nil {
		return fmt.Errorf("%w: failed to record %d chunks in ledger: %v", models.ErrWriteFailure, len(landed), err)
	}
	if writeErr != nil {
		return fmt.Errorf("%w: %d of %d chunks written: %v", models.ErrWriteFailure, len(landed), len(chunks), writeErr)
	}
	return nil
}

// SimilaritySearch returns up to k chunks most similar to query. k is capped
// to the number of stored chunks; an empty store yields no results.
func (m *VectorDBManager) SimilaritySearch(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0, got %d", k)
	}
	if count := m.collection.Count(); count < k {
		k = count
	}
	if k == 0 {
		return nil, nil
	}

	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryText: query,
		NResults:  k,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]models.SearchResult, len(results))
	for i, r := range results {
		out[i] = models.SearchResult{
			ID:         r.ID,
			Content:    r.Content,
			Metadata:   r.Metadata,
			Similarity: r.Similarity,
		}
	}
	return out, nil
}

// Count is the number of documents in the collection.
func (m *VectorDBManager) Count() int {
	return m.collection.Count()
}

// LedgerCount is the number of ids recorded in the ledger.
func (m *VectorDBManager) LedgerCount(ctx context.Context) (int, error) {
	return db.CountChunks(ctx, m.ledger)
}

// Export writes the collection to a single gob file, optionally compressed and
// encrypted with the configured 32 byte key.
func (m *VectorDBManager) Export(filePath string) error {
	if filePath == "" {
		return fmt.Errorf("export path is required")
	}

	log.Debug().
		Str("collection", m.collection.Name).
		Str("file", filePath).
		Bool("compress", m.compress).
		Bool("encrypted", m.encryptionKey != "").
		Msg("Exporting collection")

	err := m.db.ExportToFile(filePath, m.compress, m.encryptionKey, m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

func (m *VectorDBManager) Close() error {
	return m.ledger.Close()
}

// ClearStore deletes the store directory, ledger included. A Postgres ledger
// is dropped as well. Must run before the store is opened.
func ClearStore(ctx context.Context, cfg *config.Config) error {
	if err := os.RemoveAll(cfg.Store.Path); err != nil {
		return fmt.Errorf("failed to remove database directory %s: %w", cfg.Store.Path, err)
	}

	if cfg.Ledger.DSN == "" {
		return nil
	}
	ledger, err := db.Open(ctx, cfg.Ledger.DSN, cfg.Ledger.Debug)
	if err != nil {
		return fmt.Errorf("%w: failed to open ledger: %v", models.ErrStoreUnavailable, err)
	}
	defer ledger.Close()
	return db.DropChunks(ctx, ledger)
}
