package document

// Locale is the per-language text content of a document. Version counts
// content edits for this lang only, independent of the document's own
// figure version.
type Locale struct {
	Lang        string
	Version     int64
	Title       string
	Summary     string
	Description string
}

// SameContent reports whether two locales carry the same text, ignoring
// the version counters.
func (l Locale) SameContent(o Locale) bool {
	return l.Title == o.Title && l.Summary == o.Summary && l.Description == o.Description
}
