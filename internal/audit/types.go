package audit

import "time"

// EventType names a class of audit event
type EventType string

const (
	// Assist events
	EventAssistAnswered EventType = "assist.answered"
	EventAssistDegraded EventType = "assist.degraded"
	EventAssistRejected EventType = "assist.rejected"
	EventAssistFailed   EventType = "assist.failed"

	// Training events
	EventTrainingIngested EventType = "training.ingested"
	EventModelRetrained   EventType = "training.retrained"

	// Config lifecycle
	EventConfigLoaded  EventType = "config.loaded"
	EventConfigChanged EventType = "config.changed"

	// Server lifecycle
	EventServerStarted  EventType = "system.server_started"
	EventServerShutdown EventType = "system.server_shutdown"
	EventHealthCheck    EventType = "system.health_check"
)

// Result is the recorded outcome of an audited operation
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultPending Result = "pending"
	ResultDenied  Result = "denied"
)

// Event is one entry in the audit trail
type Event struct {
	// Identity
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
	EventType     EventType `json:"event_type"`
	Result        Result    `json:"result"`

	// Request origin
	User     string `json:"user,omitempty"`
	SourceIP string `json:"source_ip,omitempty"`

	// Recommendation details
	Intent     string  `json:"intent,omitempty"`
	MachineID  int     `json:"machine_id,omitempty"`
	Worker     string  `json:"worker,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`

	// Operation details
	Action      string                 `json:"action,omitempty"`
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`

	// Failure details
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`

	DurationMs int64 `json:"duration_ms,omitempty"`
}

// NewEvent starts an event stamped now, with the result pending
// until a builder sets it.
func NewEvent(eventType EventType) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Result:    ResultPending,
		Metadata:  make(map[string]interface{}),
	}
}

// WithCorrelationID ties the event to a request
func (e *Event) WithCorrelationID(id string) *Event {
	e.CorrelationID = id
	return e
}

// WithUser records who made the request
func (e *Event) WithUser(user string) *Event {
	e.User = user
	return e
}

// WithSourceIP sets the client address the request came from
func (e *Event) WithSourceIP(ip string) *Event {
	e.SourceIP = ip
	return e
}

// WithIntent sets the classified intent of the request
func (e *Event) WithIntent(intent string) *Event {
	e.Intent = intent
	return e
}

// WithAssignment sets the machine and worker of a recommendation
func (e *Event) WithAssignment(machineID int, worker string) *Event {
	e.MachineID = machineID
	e.Worker = worker
	return e
}

// WithConfidence sets the confidence of a recommendation
func (e *Event) WithConfidence(confidence float64) *Event {
	e.Confidence = confidence
	return e
}

// WithAction sets the operation being performed
func (e *Event) WithAction(action string) *Event {
	e.Action = action
	return e
}

// WithDescription attaches a readable summary
func (e *Event) WithDescription(desc string) *Event {
	e.Description = desc
	return e
}

// WithResult records how the operation ended
func (e *Event) WithResult(result Result) *Event {
	e.Result = result
	return e
}

// WithError captures a failure; a nil error leaves the event untouched
func (e *Event) WithError(err error, code string) *Event {
	if err != nil {
		e.Error = err.Error()
		e.ErrorCode = code
		e.Result = ResultFailure
	}
	return e
}

// WithDuration records elapsed time in milliseconds
func (e *Event) WithDuration(duration time.Duration) *Event {
	e.DurationMs = duration.Milliseconds()
	return e
}

// WithMetadata attaches an extra key/value pair
func (e *Event) WithMetadata(key string, value interface{}) *Event {
	e.Metadata[key] = value
	return e
}
