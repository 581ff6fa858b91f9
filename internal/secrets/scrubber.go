package secrets

import (
	"sort"
	"strings"
)

// Scrubber redacts secrets from text.
type Scrubber interface {
	// Scrub returns content with secrets replaced.
	Scrub(content string) *Result
	// IsEnabled returns whether scrubbing is active.
	IsEnabled() bool
}

// Result is the outcome of one Scrub call. Matched values are never kept.
type Result struct {
	Scrubbed string
	// ByRule counts findings per rule ID; literal matches count under "literal".
	ByRule map[string]int
}

// Findings returns the total number of redactions.
func (r *Result) Findings() int {
	n := 0
	for _, c := range r.ByRule {
		n += c
	}
	return n
}

type scrubber struct {
	config   *Config
	literals []string
}

type span struct{ start, end int }

// New creates a Scrubber. A nil config selects DefaultConfig.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &scrubber{config: cfg}
	for _, lit := range cfg.Literals {
		if len(lit) >= minLiteralLength {
			s.literals = append(s.literals, lit)
		}
	}
	return s, nil
}

// MustNew is New that panics on error.
func MustNew(cfg *Config) Scrubber {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *scrubber) IsEnabled() bool { return s.config.Enabled }

func (s *scrubber) Scrub(content string) *Result {
	result := &Result{Scrubbed: content, ByRule: make(map[string]int)}
	if !s.config.Enabled || content == "" {
		return result
	}

	var spans []span
	for _, lit := range s.literals {
		for off := 0; ; {
			i := strings.Index(content[off:], lit)
			if i < 0 {
				break
			}
			spans = append(spans, span{off + i, off + i + len(lit)})
			result.ByRule["literal"]++
			off += i + len(lit)
		}
	}

	for _, rule := range s.config.compiledRules {
		if !hasKeyword(rule, content) {
			continue
		}
		for _, m := range rule.pattern.FindAllStringIndex(content, -1) {
			if s.isAllowed(content[m[0]:m[1]]) {
				continue
			}
			spans = append(spans, span{m[0], m[1]})
			result.ByRule[rule.ID]++
		}
	}
	if len(spans) == 0 {
		return result
	}

	var b strings.Builder
	last := 0
	for _, sp := range merge(spans) {
		b.WriteString(content[last:sp.start])
		b.WriteString(s.config.RedactionString)
		last = sp.end
	}
	b.WriteString(content[last:])
	result.Scrubbed = b.String()
	return result
}

func hasKeyword(rule *compiledRule, content string) bool {
	if len(rule.keywords) == 0 {
		return true
	}
	for _, kw := range rule.keywords {
		if kw.MatchString(content) {
			return true
		}
	}
	return false
}

func (s *scrubber) isAllowed(match string) bool {
	for _, p := range s.config.compiledAllowList {
		if p.MatchString(match) {
			return true
		}
	}
	return false
}

// merge sorts spans and joins overlapping or adjacent ones.
func merge(spans []span) []span {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	out := []span{spans[0]}
	for _, cur := range spans[1:] {
		last := &out[len(out)-1]
		if cur.start <= last.end {
			last.end = max(last.end, cur.end)
			continue
		}
		out = append(out, cur)
	}
	return out
}

// NoopScrubber returns content unchanged.
type NoopScrubber struct{}

func (NoopScrubber) Scrub(content string) *Result {
	return &Result{Scrubbed: content, ByRule: map[string]int{}}
}

func (NoopScrubber) IsEnabled() bool { return false }

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = NoopScrubber{}
)
