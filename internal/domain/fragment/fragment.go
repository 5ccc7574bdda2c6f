package fragment

import "strconv"

// ID returns the deterministic fragment identifier for a document and ordinal.
func ID(documentID string, ordinal int) string {
	return documentID + ":" + strconv.Itoa(ordinal)
}

// Fragment is a bounded span of a document's normalized text, the atomic
// unit stored and retrieved. Immutable once its vector is attached.
type Fragment struct {
	id         string
	documentID string
	ordinal    int
	start      int
	end        int
	text       string
	overlap    int
	total      int
	vector     []float32
	metadata   map[string]string
}

// New creates a Fragment. The ID is derived from documentID and ordinal.
// start/end are character offsets into the normalized text, overlap is the
// number of characters shared with the previous fragment, total is the
// fragment count of the whole document.
func New(
	documentID string, ordinal, start, end int,
	text string, overlap, total int,
	metadata map[string]string,
) Fragment {
	return Fragment{
		id:         ID(documentID, ordinal),
		documentID: documentID,
		ordinal:    ordinal,
		start:      start,
		end:        end,
		text:       text,
		overlap:    overlap,
		total:      total,
		metadata:   metadata,
	}
}

// WithVector returns a copy with the embedding vector attached.
func (f Fragment) WithVector(v []float32) Fragment {
	f.vector = v
	return f
}

// ID returns the fragment identifier.
func (f *Fragment) ID() string { return f.id }

// DocumentID returns the owning document identifier.
func (f *Fragment) DocumentID() string { return f.documentID }

// Ordinal returns the fragment position within the document.
func (f *Fragment) Ordinal() int { return f.ordinal }

// Start returns the absolute start offset in the normalized text.
func (f *Fragment) Start() int { return f.start }

// End returns the absolute end offset in the normalized text.
func (f *Fragment) End() int { return f.end }

// Text returns the raw fragment text.
func (f *Fragment) Text() string { return f.text }

// Overlap returns the character count shared with the previous fragment.
func (f *Fragment) Overlap() int { return f.overlap }

// Total returns the total fragment count of the document.
func (f *Fragment) Total() int { return f.total }

// Vector returns the embedding vector, nil before embedding.
func (f *Fragment) Vector() []float32 { return f.vector }

// Metadata returns metadata copied and augmented from the document.
func (f *Fragment) Metadata() map[string]string { return f.metadata }
