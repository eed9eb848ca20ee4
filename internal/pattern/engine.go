package pattern

// Match is one positive pattern evaluation for a line.
type Match struct {
	PatternName  string
	Severity     Severity
	AlertMethods []string
	MatchedText  string
}

// Engine evaluates lines against a compiled rule set. The set is
// immutable; configuration reloads build a fresh Engine.
type Engine struct {
	patterns []Pattern
}

func NewEngine(patterns []Pattern) *Engine {
	return &Engine{patterns: patterns}
}

// Evaluate runs every pattern against the line in configuration order.
// All matching patterns are reported so one line can raise alerts of
// different severities. Evaluation is single-line; a pattern's
// ContextWindow above 1 is reserved for multi-line matching and does
// not change the result yet.
func (e *Engine) Evaluate(line string) []Match {
	if e == nil {
		return nil
	}
	var out []Match
	for _, p := range e.patterns {
		text, ok := p.Match(line)
		if !ok {
			continue
		}
		out = append(out, Match{
			PatternName:  p.Name,
			Severity:     p.Severity,
			AlertMethods: p.AlertMethods,
			MatchedText:  text,
		})
	}
	return out
}
