package telemetry

// MsgTaskLog carries a chunk of tool output for a specific phase span.
type MsgTaskLog struct {
	SpanID string
	Data   []byte
}

// MsgPlan announces the passes of a run before any of them start.
type MsgPlan struct {
	Tasks        []string
	Dependencies map[string][]string
	Targets      []string
}
