package models

const (
	// ContextSeparator joins retrieved chunks into one context block.
	ContextSeparator = "\n\n---\n\n"

	// chunk metadata keys stored alongside every document in the collection
	MetaSource  = "source"
	MetaPage    = "page"
	MetaOrdinal = "ordinal"
	MetaID      = "id"

	// NoPage is the page sentinel used in ids when a loader has no pages.
	NoPage = ""
)

var (
	PromptTemplate = `
Answer the question based only on the following context:

{{.context}}

---

Answer the question based on the above context: {{.question}}
`
)
