// Package chunkid stamps chunks with deterministic "source:page:ordinal" ids.
package chunkid

import (
	"strconv"

	"pdfrag/internal/models"
)

// PageKey is the "source:page" prefix shared by every chunk of one page.
func PageKey(source string, page *int) string {
	return source + ":" + models.FormatPage(page)
}

// Assign sets ID and Ordinal on every chunk in place and returns the same
// slice. Ordinals restart at 0 whenever the page key differs from the previous
// chunk's page key, so the input must keep all chunks of a page contiguous.
func Assign(chunks models.OrderedChunks) models.OrderedChunks {
	var (
		lastKey string
		ordinal int
	)
	for i := range chunks {
		key := PageKey(chunks[i].Source, chunks[i].Page)
		// compare the full source:page key; comparing the page alone makes
		// page 1 of two different documents share ordinals
		if i > 0 && key == lastKey {
			ordinal++
		} else {
			ordinal = 0
		}
		lastKey = key

		chunks[i].Ordinal = ordinal
		chunks[i].ID = key + ":" + strconv.Itoa(ordinal)
	}
	return chunks
}
