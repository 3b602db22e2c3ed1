package model

// Cursor sentinels.
const (
	HomeIndex     = -1
	SettingsIndex = -2
)

// Snapshot is an immutable copy of the whole store state. Revision grows by
// one on every committed mutation.
type Snapshot struct {
	Revision uint64
	Counters []Counter
	Selected int
	Home     []ID
	Settings Settings
}

// Mapping binds a counter to an external source prefix. An empty CounterID
// makes the mapping inert.
type Mapping struct {
	ID           ID     `json:"id"`
	CounterID    ID     `json:"counterId,omitempty"`
	SourcePrefix string `json:"sourcePrefix"`
}
