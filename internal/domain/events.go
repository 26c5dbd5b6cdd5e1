package domain

// EventType enumerates lifecycle notifications pushed to stream observers.
type EventType string

const (
	EventCloneStarted         EventType = "clone_started"
	EventCloneCompleted       EventType = "clone_completed"
	EventExplorationStarted   EventType = "exploration_started"
	EventExplorationProgress  EventType = "exploration_progress"
	EventExplorationCompleted EventType = "exploration_completed"
	EventExplorationFailed    EventType = "exploration_failed"
)

// Event is a transient lifecycle notification. Events exist only in flight
// between publisher and subscribers and are never persisted.
type Event struct {
	Type        EventType       `json:"type"`
	Owner       string          `json:"owner"`
	Repo        string          `json:"repo"`
	Mode        ExplorationMode `json:"mode,omitempty"`
	Data        interface{}     `json:"data,omitempty"`
	Error       string          `json:"error,omitempty"`
	TimestampMS int64           `json:"timestamp"`
}

// Key returns the topic the event belongs to.
func (e Event) Key() RepoKey {
	return RepoKey{Owner: e.Owner, Name: e.Repo}
}
