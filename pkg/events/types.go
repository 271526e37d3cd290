package events

import "encoding/json"

// Event name constants
const (
	CycleCompleted     = "cycle.completed"
	TestCompleted      = "test.completed"
	CredentialsChanged = "credentials.changed"
)

// Event is a generic SSE event from daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// CredentialsChangedEvent is the typed payload for credentials.changed.
type CredentialsChangedEvent struct {
	Configured bool   `json:"configured"`
	Source     string `json:"source"`
	Ts         int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic type T.
// It ignores the event name and simply unmarshals Data into T. If Data is empty,
// it returns the zero value of T with a nil error.
//
// Example:
//
//	report, err := events.DecodeAs[monitor.CycleReport](ev)
//	if err != nil { /* handle */ }
//	fmt.Println(report.Percentage, report.Decision)
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
