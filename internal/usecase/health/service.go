package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the service answers but sync is falling behind.
	Degraded Status = "degraded"
	// Unhealthy indicates the index store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckSaturated indicates a queue above the saturation threshold.
	CheckSaturated CheckResult = "saturated"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DefaultSaturation is the queue fill ratio reported as saturated.
const DefaultSaturation = 0.9

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db         DBPinger
	queue      QueueMonitor
	saturation float64
}

// New creates a Service. queue can be nil when async sync is disabled.
func New(db DBPinger, queue QueueMonitor) *Service {
	return &Service{db: db, queue: queue, saturation: DefaultSaturation}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if err := s.db.Ping(ctx); err != nil {
		checks["index_store"] = CheckError
		status = Unhealthy
	} else {
		checks["index_store"] = CheckOK
	}

	if s.queue != nil {
		checks["sync_queue"] = CheckOK
		if c := s.queue.Capacity(); c > 0 && float64(s.queue.Depth()) >= s.saturation*float64(c) {
			checks["sync_queue"] = CheckSaturated
			if status == Healthy {
				status = Degraded
			}
		}
	}

	return Report{Status: status, Checks: checks}
}
