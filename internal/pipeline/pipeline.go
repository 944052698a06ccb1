// Package pipeline runs one ingestion: load, split, identify, synchronize.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"pdfrag/internal/chunkid"
	"pdfrag/internal/config"
	"pdfrag/internal/helper"
	"pdfrag/internal/models"
	"pdfrag/internal/parser"
	"pdfrag/internal/splitter"
	"pdfrag/internal/syncer"
)

// runTagger is implemented by stores that record which run wrote a chunk.
type runTagger interface {
	SetRunID(runID string)
}

type Pipeline struct {
	loader   config.LoaderConfig
	splitter *splitter.Splitter
	index    syncer.Index
}

func New(cfg *config.Config, index syncer.Index) (*Pipeline, error) {
	s, err := splitter.New(cfg.Splitter)
	if err != nil {
		return nil, fmt.Errorf("failed to create splitter: %w", err)
	}
	return &Pipeline{
		loader:   cfg.Loader,
		splitter: s,
		index:    index,
	}, nil
}

// Run ingests every supported document in dataDir. The directory is fully
// loaded before the store is read, so an unreadable source leaves the store
// untouched.
func (p *Pipeline) Run(ctx context.Context, dataDir string) (models.IngestReport, error) {
	runID, err := helper.GenerateRunID()
	if err != nil {
		return models.IngestReport{}, err
	}
	logger := log.With().Str("run_id", runID).Logger()
	if t, ok := p.index.(runTagger); ok {
		t.SetRunID(runID)
	}

	pages, documents, err := parser.LoadDirectory(dataDir, p.loader)
	if err != nil {
		return models.IngestReport{}, err
	}
	logger.Info().Str("dir", dataDir).Int("documents", documents).Int("pages", len(pages)).Msg("Loaded documents")

	chunks, err := p.splitter.Split(pages)
	if err != nil {
		return models.IngestReport{}, err
	}
	chunks = chunkid.Assign(chunks)
	logger.Info().Int("chunks", len(chunks)).Msg("Split documents")

	report, err := syncer.Synchronize(ctx, chunks, p.index)
	if err != nil {
		return models.IngestReport{}, err
	}
	logger.Info().
		Int("existing", report.Existing).
		Int("new", report.New).
		Int("skipped", report.Skipped).
		Msg("Synchronized chunks")

	return models.IngestReport{
		RunID:     runID,
		Documents: documents,
		Pages:     len(pages),
		Chunks:    len(chunks),
		Sync:      report,
	}, nil
}
