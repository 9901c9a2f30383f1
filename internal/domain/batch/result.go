package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values. Stale and conflict are successful no-ops.
const (
	StatusApplied  ItemStatus = "applied"
	StatusStale    ItemStatus = "stale"
	StatusConflict ItemStatus = "conflict"
	StatusError    ItemStatus = "error"
)

// Result is the outcome of processing one item in a batch operation.
type Result struct {
	id       string
	sequence int64
	status   ItemStatus
	err      error
}

// New creates a non-error batch result.
func New(id string, sequence int64, status ItemStatus) Result {
	return Result{id: id, sequence: sequence, status: status}
}

// NewError creates a failed batch result.
func NewError(id string, sequence int64, err error) Result {
	return Result{id: id, sequence: sequence, status: StatusError, err: err}
}

// ID returns the item identifier.
func (r Result) ID() string { return r.id }

// Sequence returns the item sequence number.
func (r Result) Sequence() int64 { return r.sequence }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// OK reports whether the item needs no redelivery.
func (r Result) OK() bool { return r.status != StatusError }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }
