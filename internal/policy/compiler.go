package policy

import (
	"fmt"
	"log"
	"regexp"
	"sync"

	"github.com/agentgov/governor/internal/condition"
	"github.com/agentgov/governor/internal/models"
)

const maxRegexLen = 500

// nestedQuantifier catches the common catastrophic-backtracking shape of a
// quantified group itself quantified, e.g. "(a+)+" or "(a*)*".
var nestedQuantifier = regexp.MustCompile(`\([^()]*[+*][^()]*\)[+*]`)

// Compile validates every regex source across policies (tool "matches"
// parameters and context history/message patterns), resolves each rule's
// EffectSpec into an EffectResult, and pre-warms the shared regex cache
// with those sources. Glob sources (tool names, session-key globs) are not
// validated here; the condition kernel compiles them on first use. Built-in policies are merged in first with declared policies
// winning on id collision. An unsafe or malformed regex source degrades
// that one condition to permanently non-matching rather than failing the
// whole compile; the error return is kept for future validation that does
// need to abort.
func Compile(declared []Policy, builtins []Policy, cache *condition.RegexCache) ([]Policy, error) {
	merged := mergeDeduped(builtins, declared)
	for i := range merged {
		merged[i].declOrder = i
		for j := range merged[i].Rules {
			r := &merged[i].Rules[j]
			r.effect = resolveEffect(r.EffectSpec)
			for _, c := range r.Conditions {
				validateCondition(&c, cache)
			}
		}
	}
	return merged, nil
}

// mergeDeduped concatenates builtins and declared, dropping any builtin
// whose id also appears in declared (declared wins).
func mergeDeduped(builtins, declared []Policy) []Policy {
	declaredIDs := make(map[string]bool, len(declared))
	for _, p := range declared {
		declaredIDs[p.ID] = true
	}
	out := make([]Policy, 0, len(builtins)+len(declared))
	for _, p := range builtins {
		if !declaredIDs[p.ID] {
			out = append(out, p)
		}
	}
	out = append(out, declared...)
	return out
}

func resolveEffect(spec EffectSpec) models.EffectResult {
	return models.EffectResult{
		Kind:             spec.Kind,
		DenyReason:       spec.DenyReason,
		EscalateTarget:   spec.EscalateTarget,
		EscalateFallback: spec.EscalateFallback,
		AuditLevel:       spec.AuditLevel,
	}
}

var warnedUnsafeRegex sync.Map // source (string) -> struct{}, logged at most once

// validateCondition pre-warms the regex cache for every pattern embedded in
// c. A pattern that is unsafe (overlong, or shaped for catastrophic
// backtracking) or fails to compile is rejected into the cache's
// never-match entry rather than aborting the policy it belongs to: one bad
// condition should never take down the rest of the index.
func validateCondition(c *condition.Condition, cache *condition.RegexCache) {
	for _, src := range regexSources(c) {
		switch {
		case len(src) > maxRegexLen:
			warnUnsafeRegexOnce(src, fmt.Sprintf("exceeds %d characters", maxRegexLen))
			cache.Reject(src)
		case nestedQuantifier.MatchString(src):
			warnUnsafeRegexOnce(src, "nested quantifier")
			cache.Reject(src)
		default:
			cache.Get(src) // pre-warm; compile failure is absorbed as never-match
		}
	}
	for _, sub := range c.Any {
		validateCondition(&sub, cache)
	}
	if c.Not != nil {
		validateCondition(c.Not, cache)
	}
}

func warnUnsafeRegexOnce(src, reason string) {
	if _, already := warnedUnsafeRegex.LoadOrStore(src, struct{}{}); already {
		return
	}
	log.Printf("[governor] policy: regex source %q rejected (%s), treated as non-matching", src, reason)
}

// regexSources collects every "matches"-style pattern embedded directly in
// c (not recursing into Any/Not, handled separately by the caller).
func regexSources(c *condition.Condition) []string {
	var out []string
	if c.Tool != nil {
		for _, m := range c.Tool.Params {
			if m.Op == condition.OpMatches {
				if s, ok := m.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	if c.Context != nil {
		if c.Context.HistoryMatches != "" {
			out = append(out, c.Context.HistoryMatches)
		}
		if c.Context.MessageMatches != "" {
			out = append(out, c.Context.MessageMatches)
		}
	}
	return out
}
