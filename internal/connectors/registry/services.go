package registry

import (
	"context"
	"time"
)

// Agent is an endpoint an executor can run simulation payloads on.
type Agent struct {
	ID       string
	Host     string
	Platform string
	Group    string
	LastSeen time.Time
}

// ExecutorService is the capability executors expose to the rest of the platform.
type ExecutorService interface {
	// Agents returns the agents seen by the last poll.
	Agents() []Agent
	Execute(ctx context.Context, agentID, command string) error
}

// Stimulus is one simulated event delivered by an injector.
type Stimulus struct {
	Inject   string         `json:"inject"`
	Target   string         `json:"target,omitempty"`
	Content  string         `json:"content,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	SentAt   time.Time      `json:"sent_at"`
}

// Injector is the capability injectors expose.
type Injector interface {
	Inject(ctx context.Context, s Stimulus) error
}
