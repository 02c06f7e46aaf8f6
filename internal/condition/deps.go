package condition

import (
	"github.com/agentgov/governor/internal/frequency"
	"github.com/agentgov/governor/internal/models"
)

// Deps bundles the shared state a condition evaluation needs beyond the
// condition and context themselves: the regex cache, named time windows,
// the frequency counter, and the risk assessment computed earlier in the
// same evaluation pass.
type Deps struct {
	Regex       *RegexCache
	TimeWindows map[string]TimeWindow
	Frequency   *frequency.Counter
	Risk        models.RiskAssessment
}
