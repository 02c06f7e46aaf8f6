package ownership

import (
	"context"
	"sync"

	"github.com/agentgov/governor/internal/models"
)

// StaticResolver resolves an escalation target from a fixed target->approver
// map, ignoring tool name and risk level; useful when routing does not need
// per-tool or per-risk-band granularity.
type StaticResolver struct {
	mu         sync.RWMutex
	byTarget   map[string][]string
	defaultIDs []string
}

// NewStaticResolver builds a StaticResolver from a target->approver id map
// and a default set used when the target is unmapped.
func NewStaticResolver(byTarget map[string][]string, defaultIDs []string) *StaticResolver {
	m := make(map[string][]string, len(byTarget))
	for k, v := range byTarget {
		m[k] = append([]string(nil), v...)
	}
	return &StaticResolver{byTarget: m, defaultIDs: append([]string(nil), defaultIDs...)}
}

// Resolve implements Resolver.
func (s *StaticResolver) Resolve(ctx context.Context, target, toolName string, riskLevel models.RiskLevel) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ids, ok := s.byTarget[target]; ok && len(ids) > 0 {
		return append([]string(nil), ids...), nil
	}
	if len(s.defaultIDs) > 0 {
		return append([]string(nil), s.defaultIDs...), nil
	}
	return nil, nil
}
