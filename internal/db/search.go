package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName string
	Vector    []float32
	K         int
	// TagFilters restricts the search to documents whose tag fields equal
	// the given values (pre-filter, applied before KNN).
	TagFilters   map[string]string
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit from a search. Score is a similarity in
// [0, 1], already converted from the store's distance metric.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
