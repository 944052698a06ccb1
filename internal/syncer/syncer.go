package syncer

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_index.go -package=mocks pdfrag/internal/syncer Index

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"pdfrag/internal/models"
)

// Index is the persisted chunk store as seen by the sync engine. Entries are
// only ever added, never updated or removed.
type Index interface {
	// ListExistingIDs returns every stored id. It must not load contents or
	// embeddings.
	ListExistingIDs(ctx context.Context) (map[string]struct{}, error)
	// InsertBatch embeds and persists chunks under their ids.
	InsertBatch(ctx context.Context, chunks []models.Chunk) error
}

// Synchronize writes the chunks whose ids are not yet in index. Existing
// entries are never touched, so running it twice with the same chunks is a
// no-op. Chunks must already carry their ids.
func Synchronize(ctx context.Context, chunks models.OrderedChunks, index Index) (models.SyncReport, error) {
	if err := checkIDs(chunks); err != nil {
		return models.SyncReport{}, err
	}

	existing, err := index.ListExistingIDs(ctx)
	if err != nil {
		if !errors.Is(err, models.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: failed to list existing ids: %v", models.ErrStoreUnavailable, err)
		}
		return models.SyncReport{}, err
	}
	log.Info().Int("existing", len(existing)).Msg("Number of existing documents in DB")

	newChunks := make([]models.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if _, ok := existing[chunk.ID]; !ok {
			newChunks = append(newChunks, chunk)
		}
	}

	report := models.SyncReport{
		Existing: len(existing),
		New:      len(newChunks),
		Skipped:  len(chunks) - len(newChunks),
	}

	if len(newChunks) == 0 {
		log.Info().Msg("No new documents to add")
		return report, nil
	}

	log.Info().Int("new", len(newChunks)).Msg("Adding new documents")
	if err := index.InsertBatch(ctx, newChunks); err != nil {
		if !errors.Is(err, models.ErrWriteFailure) {
			err = fmt.Errorf("%w: %v", models.ErrWriteFailure, err)
		}
		return models.SyncReport{}, err
	}
	return report, nil
}

// checkIDs rejects missing and repeated ids before the store is read.
func checkIDs(chunks models.OrderedChunks) error {
	seen := make(map[string]struct{}, len(chunks))
	for i, chunk := range chunks {
		if chunk.ID == "" {
			return fmt.Errorf("%w: chunk %d from %s", models.ErrMissingChunkID, i, chunk.Source)
		}
		if _, ok := seen[chunk.ID]; ok {
			return fmt.Errorf("%w: %s", models.ErrDuplicateChunkID, chunk.ID)
		}
		seen[chunk.ID] = struct{}{}
	}
	return nil
}
