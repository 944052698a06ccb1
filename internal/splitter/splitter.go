// Package splitter cuts loaded pages into overlapping chunks.
package splitter

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"

	"pdfrag/internal/config"
	"pdfrag/internal/models"
)

type Splitter struct {
	splitter textsplitter.TextSplitter
}

// New builds a recursive character splitter. Separators are tried in order,
// so the default list prefers paragraph, then line, then word, then character
// boundaries. Length is counted in runes.
func New(cfg config.SplitterConfig) (*Splitter, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be greater than 0, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	separators := cfg.Separators
	if len(separators) == 0 {
		separators = config.Default().Splitter.Separators
	}

	return &Splitter{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.ChunkSize),
			textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
			textsplitter.WithSeparators(separators),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}, nil
}

// Split returns the chunks of every page, pages in input order and chunks in
// text order. Chunks inherit Source and Page from their page; ids are not set.
func (s *Splitter) Split(pages []models.Page) (models.OrderedChunks, error) {
	var chunks models.OrderedChunks
	for _, page := range pages {
		if strings.TrimSpace(page.Content) == "" {
			continue
		}
		parts, err := s.splitter.SplitText(page.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to split %s page %s: %w", page.Source, models.FormatPage(page.Page), err)
		}
		for _, part := range parts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			chunks = append(chunks, models.Chunk{
				Content: part,
				Source:  page.Source,
				Page:    page.Page,
			})
		}
	}

	log.Debug().Int("pages", len(pages)).Int("chunks", len(chunks)).Msg("Split documents")
	return chunks, nil
}
