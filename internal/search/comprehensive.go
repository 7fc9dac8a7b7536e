package search

// comprehensiveStrategy enumerates every prefix at every depth up front,
// depth-major. It never subdivides, so progress is a simple countdown.
type comprehensiveStrategy struct {
	maxDepth   int
	testPrefix string
}

func newComprehensive(opts Options) *comprehensiveStrategy {
	return &comprehensiveStrategy{maxDepth: opts.MaxDepth, testPrefix: opts.TestPrefix}
}

func (s *comprehensiveStrategy) Plan(completed map[string]struct{}) []Unit {
	var units []Unit
	level := basePrefixes(s.testPrefix)
	for depth := 1; depth <= s.maxDepth; depth++ {
		for _, p := range level {
			u := Unit{Prefix: p}
			if _, done := completed[u.Key()]; !done {
				units = append(units, u)
			}
		}
		if depth == s.maxDepth {
			break
		}
		next := make([]string, 0, len(level)*len(Alphabet))
		for _, p := range level {
			next = append(next, childPrefixes(p)...)
		}
		level = next
	}
	return units
}

func (s *comprehensiveStrategy) Expand(Unit, int, map[string]struct{}) []Unit {
	return nil
}

func (s *comprehensiveStrategy) EstimateTotal() int {
	total := 0
	width := len(basePrefixes(s.testPrefix))
	for d := 1; d <= s.maxDepth; d++ {
		total += width
		width *= len(Alphabet)
	}
	return total
}

func (s *comprehensiveStrategy) Describe() string {
	return "comprehensive prefix sweep"
}
