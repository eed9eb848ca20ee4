package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Severity is the closed set of alert levels. Configuration validation
// rejects anything outside it.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return sev, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

type MatchType string

const (
	MatchAny MatchType = "any"
	MatchAll MatchType = "all"
)

func ParseMatchType(s string) (MatchType, error) {
	switch mt := MatchType(strings.ToLower(strings.TrimSpace(s))); mt {
	case MatchAny, MatchAll:
		return mt, nil
	case "":
		return MatchAny, nil
	default:
		return "", fmt.Errorf("unknown match_type %q", s)
	}
}

// Clause is one regular expression of a pattern. A negated clause
// contributes the inverse of its match to the ANY/ALL fold.
type Clause struct {
	re     *regexp.Regexp
	negate bool
}

// Spec is the uncompiled configuration form of a pattern. For ALL the
// regex field is a comma-separated clause list; for ANY it is a single
// expression. A clause starting with '!' is negated.
type Spec struct {
	Name         string
	Regex        string
	MatchType    string
	Severity     string
	AlertMethods []string
	Context      *int
}

type Pattern struct {
	Name          string
	MatchType     MatchType
	Severity      Severity
	AlertMethods  []string
	ContextWindow int
	clauses       []Clause
}

// Compile validates a Spec and compiles its clauses. Matching is
// case-insensitive, as in the original Logex config format.
func Compile(s Spec) (Pattern, error) {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return Pattern{}, fmt.Errorf("pattern name is empty")
	}

	mt, err := ParseMatchType(s.MatchType)
	if err != nil {
		return Pattern{}, err
	}
	sev, err := ParseSeverity(s.Severity)
	if err != nil {
		return Pattern{}, err
	}

	window := 1
	if s.Context != nil {
		if *s.Context < 1 {
			return Pattern{}, fmt.Errorf("context must be >= 1, got %d", *s.Context)
		}
		window = *s.Context
	}

	// Only ALL splits the regex on commas. An ANY regex is one
	// expression, so constructs like \d{1,3} survive intact.
	var clauses []Clause
	if mt == MatchAll {
		for _, frag := range strings.Split(s.Regex, ",") {
			frag = strings.TrimSpace(frag)
			if frag == "" {
				continue
			}
			c, err := compileClause(frag)
			if err != nil {
				return Pattern{}, err
			}
			clauses = append(clauses, c)
		}
	} else if frag := strings.TrimSpace(s.Regex); frag != "" {
		c, err := compileClause(frag)
		if err != nil {
			return Pattern{}, err
		}
		clauses = append(clauses, c)
	}
	if len(clauses) == 0 {
		return Pattern{}, fmt.Errorf("pattern has no clauses")
	}

	methods := make([]string, 0, len(s.AlertMethods))
	for _, m := range s.AlertMethods {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			methods = append(methods, m)
		}
	}

	return Pattern{
		Name:          name,
		MatchType:     mt,
		Severity:      sev,
		AlertMethods:  methods,
		ContextWindow: window,
		clauses:       clauses,
	}, nil
}

func compileClause(frag string) (Clause, error) {
	negate := false
	if strings.HasPrefix(frag, "!") {
		negate = true
		frag = strings.TrimSpace(strings.TrimPrefix(frag, "!"))
		if frag == "" {
			return Clause{}, fmt.Errorf("negated clause is empty")
		}
	}
	re, err := regexp.Compile("(?i)" + frag)
	if err != nil {
		return Clause{}, fmt.Errorf("bad regex %q: %v", frag, err)
	}
	return Clause{re: re, negate: negate}, nil
}

// Match folds the clauses over a single line. For ANY the returned text
// is the first positive clause's match; for ALL it is the whole line.
func (p Pattern) Match(line string) (string, bool) {
	if p.MatchType == MatchAll {
		for _, c := range p.clauses {
			if c.re.MatchString(line) == c.negate {
				return "", false
			}
		}
		return line, true
	}
	for _, c := range p.clauses {
		hit := c.re.MatchString(line)
		var text string
		if hit {
			text = c.re.FindString(line)
		}
		if c.negate {
			hit = !hit
		}
		if hit {
			if text == "" {
				text = line
			}
			return text, true
		}
	}
	return "", false
}
