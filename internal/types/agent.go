package types

import "time"

// AgentRole is the capacity in which an agent registers with the mesh.
type AgentRole string

const (
	RoleProducer AgentRole = "producer"
	RoleConsumer AgentRole = "consumer"
)

// AgentRegistration is the orchestrator's record of a participant.
type AgentRegistration struct {
	AgentID      string    `json:"agentId"`
	Role         AgentRole `json:"role"`
	Capabilities []string  `json:"capabilities"`
	RegisteredAt time.Time `json:"registeredAt"`
	A2AChannel   string    `json:"a2aChannel,omitempty"`
}
