package nearby

import "github.com/kailas-cloud/nearby/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation         = domain.ErrValidation
	ErrNotFound           = domain.ErrNotFound
	ErrConflict           = domain.ErrConflict
	ErrInfrastructure     = domain.ErrInfrastructure
	ErrProviderNotIndexed = domain.ErrProviderNotIndexed
)

// IsRetryable reports whether a failed call may succeed when repeated unchanged.
func IsRetryable(err error) bool { return domain.IsRetryable(err) }
