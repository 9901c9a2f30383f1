package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/nearby/internal/domain"
	"github.com/kailas-cloud/nearby/internal/domain/search/request"
	"github.com/kailas-cloud/nearby/internal/domain/search/result"
	"github.com/kailas-cloud/nearby/internal/metrics"
)

// CountPolicy decides what a failed total count does to a search.
type CountPolicy string

const (
	// CountStrict fails the search when the total cannot be computed.
	CountStrict CountPolicy = "strict"
	// CountBestEffort returns the page without a total.
	CountBestEffort CountPolicy = "best_effort"
)

// ParseCountPolicy parses a policy name. Empty means strict.
func ParseCountPolicy(s string) (CountPolicy, error) {
	switch CountPolicy(s) {
	case "", CountStrict:
		return CountStrict, nil
	case CountBestEffort:
		return CountBestEffort, nil
	default:
		return "", fmt.Errorf("unknown count policy %q", s)
	}
}

// DefaultRetries is how many times a failed query is retried.
const DefaultRetries = 1

// Service is the provider search entry point: validation, retry and error translation
// around the Planner.
type Service struct {
	planner *Planner
	limits  request.Limits
	policy  CountPolicy
	retries int
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a search service.
func New(store ProviderSearcher, logger *zap.Logger) *Service {
	return &Service{
		planner: NewPlanner(store),
		limits:  request.DefaultLimits(),
		policy:  CountStrict,
		retries: DefaultRetries,
		logger:  logger,
	}
}

// WithLimits configures request validation limits.
func (s *Service) WithLimits(l request.Limits) *Service {
	s.limits = l
	return s
}

// WithCountPolicy configures the count failure policy.
func (s *Service) WithCountPolicy(p CountPolicy) *Service {
	s.policy = p
	return s
}

// WithRetries configures how many times an infrastructure failure is retried.
func (s *Service) WithRetries(n int) *Service {
	if n >= 0 {
		s.retries = n
	}
	return s
}

// WithQueryTimeout bounds searches whose context carries no deadline.
func (s *Service) WithQueryTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// Limits returns the active validation limits.
func (s *Service) Limits() request.Limits { return s.limits }

// Search validates params and returns one ranked page of active providers
// within the radius.
func (s *Service) Search(ctx context.Context, params request.Params) (result.Page, error) {
	start := time.Now()
	page, err := s.search(ctx, params)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	metrics.SearchRequestsTotal.WithLabelValues(statusLabel(err)).Inc()
	return page, err
}

func (s *Service) search(ctx context.Context, params request.Params) (result.Page, error) {
	req, err := request.New(params, s.limits)
	if err != nil {
		return result.Page{}, err
	}

	if _, ok := ctx.Deadline(); !ok && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var exec Execution
	for attempt := 0; ; attempt++ {
		exec, err = s.planner.Search(ctx, &req)
		if err == nil && exec.CountErr != nil && s.policy == CountStrict {
			err = fmt.Errorf("count providers: %w", exec.CountErr)
		}
		if err == nil || attempt >= s.retries || !retryable(ctx, err) {
			break
		}
		metrics.SearchRetriesTotal.Inc()
		s.logger.Warn("search failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	if err != nil {
		return result.Page{}, translate(ctx, err)
	}

	if exec.CountErr != nil {
		metrics.SearchCountOmittedTotal.Inc()
		s.logger.Warn("total count omitted", zap.Error(exec.CountErr))
		return result.NewPageWithoutCount(exec.Hits), nil
	}
	return result.NewPage(exec.Hits, exec.Total), nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// translate maps storage failures to the domain taxonomy. Deadline expiry is
// reported as an unavailable store; cancellation is returned as is.
func translate(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("search providers: %w", context.Canceled)
	case errors.Is(err, domain.ErrInfrastructure):
		return err
	default:
		return domain.Infrastructure("search providers", err)
	}
}

func statusLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}
