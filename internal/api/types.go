package api

import "time"

// StackType is the deployment style of a stack.
type StackType string

const (
	StackCompose StackType = "compose"
	StackScript  StackType = "script"
)

// Inventory is the full host → stack tree returned by GET /api/inventory.
type Inventory struct {
	Hosts []Host `json:"hosts"`
}

// Host is a deployment target directory under the scan root.
type Host struct {
	Host   string   `json:"host"`
	Groups []string `json:"groups"`
	Stacks []Stack  `json:"stacks"`
}

// Stack is one deployable unit rooted at a directory under its host.
type Stack struct {
	Name       string      `json:"name"`
	Type       StackType   `json:"type"`
	Path       string      `json:"path"`
	Sops       bool        `json:"sops"`
	Containers []Container `json:"containers"`
}

// Container is the live state of one container of a stack.
// Discovery never fills these in.
type Container struct {
	Name  string `json:"name"`
	Image string `json:"image"`
	State string `json:"state"`
}

// StackDetail is returned by GET /api/inventory/{host}/{stack}.
type StackDetail struct {
	Stack    Stack       `json:"stack"`
	Manifest string      `json:"manifest,omitempty"`
	Services []Service   `json:"services"`
	Files    []StackFile `json:"files"`
	Error    string      `json:"error,omitempty"`
}

// Service is a service declared in a stack's compose manifest.
type Service struct {
	Name          string `json:"name"`
	Image         string `json:"image,omitempty"`
	ContainerName string `json:"containerName,omitempty"`
}

// StackFile is a regular file directly inside a stack directory.
type StackFile struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
	Sops bool   `json:"sops"`
}

// RunRequest is the JSON body of POST /api/ci/run.
type RunRequest struct {
	Mode string `json:"mode"`
}

// Level classifies a run event.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelDone  Level = "done"
)

// Event is one line of a run stream.
type Event struct {
	Seq     int        `json:"seq"`
	Level   Level      `json:"level"`
	TS      *time.Time `json:"ts,omitempty"`
	Msg     string     `json:"msg,omitempty"`
	Edition string     `json:"edition,omitempty"`
	Host    string     `json:"host,omitempty"`
	Stack   string     `json:"stack,omitempty"`
	Summary *Summary   `json:"summary,omitempty"`
}

// Terminal reports whether e is the closing event of a run.
func (e Event) Terminal() bool {
	return e.Level == LevelDone
}

// Summary is carried by the terminal event.
type Summary struct {
	Hosts   int `json:"hosts"`
	Stacks  int `json:"stacks"`
	Changed int `json:"changed"`
	Failed  int `json:"failed"`
}

// Health is returned by GET /api/healthz.
type Health struct {
	Status  string `json:"status"`
	Edition string `json:"edition"`
}
