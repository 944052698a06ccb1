package models

import "strconv"

// Page is one page of text as produced by a document loader.
type Page struct {
	Content string
	Source  string
	Page    *int
}

// Chunk represents a split chunk with its source metadata and identity
type Chunk struct {
	Content string
	Source  string
	Page    *int
	Ordinal int
	ID      string
}

// PageString renders the page number, or NoPage when the loader had none.
func (c Chunk) PageString() string {
	return FormatPage(c.Page)
}

// Metadata returns the metadata stored with the chunk in the vector collection.
func (c Chunk) Metadata() map[string]string {
	return map[string]string{
		MetaSource:  c.Source,
		MetaPage:    c.PageString(),
		MetaOrdinal: strconv.Itoa(c.Ordinal),
		MetaID:      c.ID,
	}
}

// OrderedChunks is a chunk sequence in document order, then page order, then
// split order. Identity assignment relies on that order, so only the splitter
// builds values of this type.
type OrderedChunks []Chunk

// IDs returns the ids in sequence order.
func (oc OrderedChunks) IDs() []string {
	ids := make([]string, len(oc))
	for i, c := range oc {
		ids[i] = c.ID
	}
	return ids
}

// FormatPage renders an optional page number.
func FormatPage(page *int) string {
	if page == nil {
		return NoPage
	}
	return strconv.Itoa(*page)
}

// PageNumber returns a pointer to n, for building pages and chunks.
func PageNumber(n int) *int {
	return &n
}

type SyncReport struct {
	Existing int `json:"existing"`
	New      int `json:"new"`
	Skipped  int `json:"skipped"`
}

type IngestReport struct {
	RunID     string     `json:"run_id"`
	Documents int        `json:"documents"`
	Pages     int        `json:"pages"`
	Chunks    int        `json:"chunks"`
	Sync      SyncReport `json:"sync"`
}

type PromptResponse struct {
	Query   string
	Context string
	Prompt  string
	Content string
	Sources []string
}

// SearchResult is one retrieved chunk, most similar first.
type SearchResult struct {
	ID         string
	Content    string
	Metadata   map[string]string
	Similarity float32
}
