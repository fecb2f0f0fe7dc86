// Package orchestrator implements C5: the agent registry, task table,
// audit-event publisher, and on-chain receipt verifier. Producers and
// consumers never hold references to one another directly — they hold only
// the orchestrator's handle and publish events to it (spec §9).
package orchestrator

import (
	"sync"
	"time"

	"github.com/trustmesh/agentmarket/internal/types"
)

// ChannelDialer attempts an A2A channel handshake with a newly registered
// agent. Failure never blocks registration (spec §4.5).
type ChannelDialer interface {
	Dial(agentID string) (channel string, err error)
}

// Registry is the orchestrator's in-memory agent table, guarded by a single
// coarse lock per spec §5.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]types.AgentRegistration
	dialer ChannelDialer
}

// NewRegistry builds an empty registry. dialer may be nil, in which case no
// A2A handshake is attempted.
func NewRegistry(dialer ChannelDialer) *Registry {
	return &Registry{
		agents: make(map[string]types.AgentRegistration),
		dialer: dialer,
	}
}

// Register adds or refreshes an agent's entry. A duplicate id refreshes its
// capabilities in place.
func (r *Registry) Register(agentID string, role types.AgentRole, capabilities []string) types.AgentRegistration {
	reg := types.AgentRegistration{
		AgentID:      agentID,
		Role:         role,
		Capabilities: capabilities,
		RegisteredAt: time.Now(),
	}

	r.mu.Lock()
	if existing, ok := r.agents[agentID]; ok {
		reg.RegisteredAt = existing.RegisteredAt
		reg.A2AChannel = existing.A2AChannel
	}
	r.agents[agentID] = reg
	r.mu.Unlock()

	if r.dialer != nil {
		if channel, err := r.dialer.Dial(agentID); err == nil {
			r.mu.Lock()
			entry := r.agents[agentID]
			entry.A2AChannel = channel
			r.agents[agentID] = entry
			r.mu.Unlock()
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.agents[agentID]
}

// Get returns the registration for agentID, if any. An unknown id is not an
// error for issue/log flows — callers treat the zero value as "unregistered"
// without failing.
func (r *Registry) Get(agentID string) (types.AgentRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.agents[agentID]
	return reg, ok
}

// List returns a snapshot of every registered agent.
func (r *Registry) List() []types.AgentRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.AgentRegistration, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}
