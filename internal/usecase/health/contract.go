package health

import "context"

// DBPinger checks index store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// QueueMonitor reports async sync queue occupancy.
type QueueMonitor interface {
	Depth() int
	Capacity() int
}
