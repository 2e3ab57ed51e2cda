package service

import (
	"github.com/xiaot623/gogo/marketing/internal/domain"
)

// AgentInfo describes one task agent.
type AgentInfo struct {
	Task        domain.TaskID `json:"task"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      string        `json:"status"`
	Keywords    []string      `json:"keywords"`
}

// ListAgents returns every task in declared order with its wiring state.
func (s *Service) ListAgents() []AgentInfo {
	entries := s.registry.Entries()
	agents := make([]AgentInfo, 0, len(entries))
	for _, e := range entries {
		info := AgentInfo{
			Task:        e.Task,
			Name:        e.Name,
			Description: e.Description,
			Status:      e.Status().String(),
			Keywords:    []string{},
		}
		if s.detector != nil {
			info.Keywords = s.detector.Keywords(e.Task)
		}
		agents = append(agents, info)
	}
	return agents
}
