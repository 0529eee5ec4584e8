package engine

// Event topics published on the engine bus.
const (
	// Device events.
	TopicConnectionChanged = "device:connection-changed"

	// Chip-read task events, correlated by session ID.
	TopicAuthBegin     = "chip:auth-begin"
	TopicAuthWaitInput = "chip:auth-wait-input"
	TopicAuthFinished  = "chip:auth-finished"
	TopicReadBegin     = "chip:read-begin"
	TopicFileChecked   = "chip:file-checked"
	TopicReadFinished  = "chip:read-finished"

	// Read cycle events published by the coordinator for diagnostics.
	TopicCycleStarted  = "read:cycle-started"
	TopicCycleFinished = "read:cycle-finished"
)

// Topics lists every topic carried on the engine bus, in publish order of a
// typical read cycle. Used by diagnostic subscribers.
func Topics() []string {
	return []string{
		TopicConnectionChanged,
		TopicCycleStarted,
		TopicAuthBegin,
		TopicAuthWaitInput,
		TopicAuthFinished,
		TopicReadBegin,
		TopicFileChecked,
		TopicReadFinished,
		TopicCycleFinished,
	}
}

// ConnectionEvent reports the reader hardware appearing or disappearing.
type ConnectionEvent struct {
	DeviceName string `json:"device_name"`
	Connected  bool   `json:"connected"`
}

// AuthEvent reports chip authentication progress.
type AuthEvent struct {
	SessionID string `json:"session_id"`
	OK        bool   `json:"ok"`
	Detail    string `json:"detail,omitempty"`
}

// FileEvent reports per-file chip read progress.
type FileEvent struct {
	SessionID string     `json:"session_id"`
	File      ChipFileID `json:"file"`
}

// ReadFinishedEvent carries the outcome of one file group. Data holds the
// binary payload on success and is parsed with Engine.Analyze.
type ReadFinishedEvent struct {
	SessionID string     `json:"session_id"`
	File      ChipFileID `json:"file"`
	OK        bool       `json:"ok"`
	Data      []byte     `json:"-"`
	Detail    string     `json:"detail,omitempty"`
}

// CycleEvent reports a whole read cycle starting or finishing.
type CycleEvent struct {
	SessionID string `json:"session_id"`
	OK        bool   `json:"ok"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
}
