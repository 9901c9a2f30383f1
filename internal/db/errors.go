package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrKeyExists     = errors.New("db: key already exists")
	ErrStaleSequence = errors.New("db: sequence not newer than stored")
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
)

// Op names used for error context.
const (
	OpCreateIndex  = "FT.CREATE"
	OpDropIndex    = "FT.DROPINDEX"
	OpScan         = "SCAN"
	OpDel          = "DEL"
	OpReset        = "RESET"
	OpIndexInfo    = "FT.INFO"
	OpSearch       = "FT.SEARCH"
	OpAggregate    = "FT.AGGREGATE"
	OpHGetAll      = "HGETALL"
	OpGet          = "GET"
	OpCommit       = "COMMIT"
	OpSelect       = "SELECT"
	OpCount        = "COUNT"
	OpMigrate      = "MIGRATE"
	OpPing         = "PING"
	OpLoadSequence = "LOAD_SEQUENCE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
