package heartbeat

import "time"

// Progress is one heartbeat emitted while a run is executing.
type Progress struct {
	RunID      string    `json:"run_id"`
	ScheduleID string    `json:"schedule_id"`
	Phase      string    `json:"phase"`
	Done       int       `json:"done"`
	Total      int       `json:"total"`
	At         time.Time `json:"at"`
}

// Publisher delivers run progress to external observers. Implementations
// must be safe for concurrent use.
type Publisher interface {
	// PublishProgress delivers one heartbeat and returns the message
	// identifier used by the transport.
	PublishProgress(p Progress) (string, error)
	Close() error
}

// NopPublisher discards heartbeats.
type NopPublisher struct{}

func (NopPublisher) PublishProgress(Progress) (string, error) { return "", nil }
func (NopPublisher) Close() error                             { return nil }
