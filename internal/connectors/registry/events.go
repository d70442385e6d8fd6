package registry

import "time"

const UnknownTotal int64 = -1

type Reporter interface {
	Report(Event)
}

// Event describes progress of a reconciliation pass.
type Event struct {
	Source  string
	Stage   string
	Current int64
	Total   int64
	Message string
	Done    bool
	Err     error
	At      time.Time
}
