package caldera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/open-bas/open-bas/internal/connectors/registry"
)

var ErrUnknownAgent = errors.New("caldera agent not found")

type executor struct {
	client *Client
	group  string
	logger *slog.Logger

	mu     sync.RWMutex
	agents []registry.Agent
}

func (e *executor) poll(ctx context.Context) error {
	agents, err := e.client.ListAgents(ctx)
	if err != nil {
		return err
	}
	out := make([]registry.Agent, 0, len(agents))
	for _, a := range agents {
		if e.group != "" && !strings.EqualFold(a.Group, e.group) {
			continue
		}
		out = append(out, registry.Agent{
			ID:       a.Paw,
			Host:     a.Host,
			Platform: a.Platform,
			Group:    a.Group,
			LastSeen: a.LastSeen,
		})
	}

	e.mu.Lock()
	e.agents = out
	e.mu.Unlock()
	e.logger.Debug("caldera agents polled", "agents", len(out))
	return nil
}

func (e *executor) Agents() []registry.Agent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.agents)
}

func (e *executor) Execute(ctx context.Context, agentID, command string) error {
	known := slices.ContainsFunc(e.Agents(), func(a registry.Agent) bool { return a.ID == agentID })
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	return e.client.RunCommand(ctx, agentID, command)
}
