package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of processing one painting in a batch operation.
type Result struct {
	id     int64
	status ItemStatus
	dim    int
	err    error
}

// NewOK creates a successful batch result carrying the stored vector length.
func NewOK(id int64, dim int) Result { return Result{id: id, status: StatusOK, dim: dim} }

// NewError creates a failed batch result.
func NewError(id int64, err error) Result { return Result{id: id, status: StatusError, err: err} }

// ID returns the painting identifier.
func (r Result) ID() int64 { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Dim returns the stored vector length for successful items.
func (r Result) Dim() int { return r.dim }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Summarize counts successful and failed results.
func Summarize(results []Result) (succeeded, failed int) {
	for _, r := range results {
		if r.status == StatusOK {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
