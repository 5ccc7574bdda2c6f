package result

// Result is a single ranked search hit.
type Result struct {
	fragmentID string
	documentID string
	ordinal    int
	score      float64
	text       string
	metadata   map[string]string
}

// New creates a search result.
func New(fragmentID, documentID string, ordinal int, score float64, text string, metadata map[string]string) Result {
	return Result{
		fragmentID: fragmentID,
		documentID: documentID,
		ordinal:    ordinal,
		score:      score,
		text:       text,
		metadata:   metadata,
	}
}

// FragmentID returns the fragment identifier.
func (r Result) FragmentID() string { return r.fragmentID }

// DocumentID returns the owning document identifier.
func (r Result) DocumentID() string { return r.documentID }

// Ordinal returns the fragment position within its document.
func (r Result) Ordinal() int { return r.ordinal }

// Score returns the similarity score in [0, 1], higher is better.
func (r Result) Score() float64 { return r.score }

// Text returns the fragment text.
func (r Result) Text() string { return r.text }

// Metadata returns the fragment and document metadata attached to the hit.
func (r Result) Metadata() map[string]string { return r.metadata }
