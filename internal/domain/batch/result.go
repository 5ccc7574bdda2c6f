package batch

// ItemStatus is the processing outcome of a single file in a directory run.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of indexing one file in a directory batch.
// One file's failure never aborts the batch; every file gets a Result.
type Result struct {
	sourcePath    string
	documentID    string
	fragmentCount int
	status        ItemStatus
	err           error
}

// NewOK creates a successful batch result.
func NewOK(sourcePath, documentID string, fragmentCount int) Result {
	return Result{
		sourcePath:    sourcePath,
		documentID:    documentID,
		fragmentCount: fragmentCount,
		status:        StatusOK,
	}
}

// NewError creates a failed batch result.
func NewError(sourcePath string, err error) Result {
	return Result{sourcePath: sourcePath, status: StatusError, err: err}
}

// SourcePath returns the file the result belongs to.
func (r Result) SourcePath() string { return r.sourcePath }

// DocumentID returns the created document id, empty on failure.
func (r Result) DocumentID() string { return r.documentID }

// FragmentCount returns the number of committed fragments, zero on failure.
func (r Result) FragmentCount() int { return r.fragmentCount }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }
