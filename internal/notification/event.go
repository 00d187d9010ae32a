package notification

import "time"

const (
	EventRouteUpdated      = "route-updated"
	EventDependencyUpdated = "dependency-updated"
	EventConfigUpdated     = "config-updated"
	EventEnvUpdated        = "env-updated"
	EventReloadError       = "reload-error"
)

// Event is the JSON shape pushed to notification clients. Exactly one
// event is emitted per distinguishable reload outcome.
type Event struct {
	EventType       string    `json:"event"`
	RoutePath       string    `json:"routePath,omitempty"`
	FilePath        string    `json:"filePath,omitempty"`
	Dependency      string    `json:"dependency,omitempty"`
	AffectedRoutes  []string  `json:"affectedRoutes,omitempty"`
	RequiresRestart bool      `json:"requiresRestart,omitempty"`
	Error           string    `json:"error,omitempty"`
	Retries         int       `json:"retries,omitempty"`
	OccurredAt      time.Time `json:"timestamp"`
}

func (e Event) Type() string {
	return e.EventType
}

func (e Event) Timestamp() time.Time {
	return e.OccurredAt
}

// NewRouteUpdated reports a single route reloaded in place.
func NewRouteUpdated(routePath, filePath string) Event {
	return Event{
		EventType:  EventRouteUpdated,
		RoutePath:  routePath,
		FilePath:   filePath,
		OccurredAt: time.Now().UTC(),
	}
}

// NewDependencyUpdated reports a shared dependency change that
// reloaded the listed routes.
func NewDependencyUpdated(dependency string, affectedRoutes []string) Event {
	return Event{
		EventType:      EventDependencyUpdated,
		Dependency:     dependency,
		AffectedRoutes: affectedRoutes,
		OccurredAt:     time.Now().UTC(),
	}
}

// NewConfigUpdated reports a shared config file change.
// requiresRestart tells the client whether a full process restart is
// advisable rather than the soft reload that was performed.
func NewConfigUpdated(filePath string, requiresRestart bool) Event {
	return Event{
		EventType:       EventConfigUpdated,
		FilePath:        filePath,
		RequiresRestart: requiresRestart,
		OccurredAt:      time.Now().UTC(),
	}
}

// NewEnvUpdated reports an environment file change.
func NewEnvUpdated(filePath string, requiresRestart bool) Event {
	return Event{
		EventType:       EventEnvUpdated,
		FilePath:        filePath,
		RequiresRestart: requiresRestart,
		OccurredAt:      time.Now().UTC(),
	}
}

// NewReloadError reports a route that failed to reload after the
// retry budget was exhausted.
func NewReloadError(filePath string, err error, retries int) Event {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return Event{
		EventType:  EventReloadError,
		FilePath:   filePath,
		Error:      message,
		Retries:    retries,
		OccurredAt: time.Now().UTC(),
	}
}
