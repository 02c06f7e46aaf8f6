package policy

import "github.com/agentgov/governor/internal/condition"

// Index is the immutable-after-build lookup structure the evaluator reads.
// It is never mutated after BuildIndex returns; the engine holds its
// pointer behind a read-write mutex.
type Index struct {
	ByHook  map[string][]Policy
	ByAgent map[string][]Policy
	Regex   *condition.RegexCache
}

// BuildIndex compiles the given policies (declared plus toggled built-ins)
// and returns the resulting immutable Index.
func BuildIndex(declared []Policy, toggles BuiltinToggles, params BuiltinParams) (*Index, error) {
	cache := condition.NewRegexCache()
	builtins := BuildBuiltins(toggles, params)
	compiled, err := Compile(declared, builtins, cache)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		ByHook:  make(map[string][]Policy),
		ByAgent: make(map[string][]Policy),
		Regex:   cache,
	}

	allHooks := []string{"before_tool_call", "message_sending", "before_agent_start", "session_start"}

	for _, p := range compiled {
		if len(p.Scope.Hooks) == 0 {
			for _, h := range allHooks {
				idx.ByHook[h] = append(idx.ByHook[h], p)
			}
		} else {
			for _, h := range p.Scope.Hooks {
				idx.ByHook[string(h)] = append(idx.ByHook[string(h)], p)
			}
		}

		if len(p.Scope.AgentIDs) == 0 {
			idx.ByAgent["*"] = append(idx.ByAgent["*"], p)
		} else {
			for _, id := range p.Scope.AgentIDs {
				idx.ByAgent[id] = append(idx.ByAgent[id], p)
			}
		}
	}

	return idx, nil
}
