package search

// adaptiveStrategy starts at single letters and subdivides only the prefixes
// that look saturated: a full result page, or membership in the known
// high-volume list. Subdivision stops at MaxDepth.
type adaptiveStrategy struct {
	maxDepth   int
	pageLimit  int
	testPrefix string
	highVolume map[string]struct{}
}

func newAdaptive(opts Options) *adaptiveStrategy {
	hv := make(map[string]struct{}, len(opts.Catalog.HighVolumePrefixes))
	for _, p := range opts.Catalog.HighVolumePrefixes {
		hv[p] = struct{}{}
	}
	return &adaptiveStrategy{
		maxDepth:   opts.MaxDepth,
		pageLimit:  opts.PageLimit,
		testPrefix: opts.TestPrefix,
		highVolume: hv,
	}
}

func (s *adaptiveStrategy) Plan(completed map[string]struct{}) []Unit {
	var units []Unit
	for _, p := range basePrefixes(s.testPrefix) {
		u := Unit{Prefix: p}
		if _, done := completed[u.Key()]; !done {
			units = append(units, u)
		}
	}
	return units
}

func (s *adaptiveStrategy) Expand(u Unit, resultCount int, completed map[string]struct{}) []Unit {
	if !s.shouldSubdivide(u, resultCount) {
		return nil
	}
	var children []Unit
	for _, p := range childPrefixes(u.Prefix) {
		child := Unit{Profession: u.Profession, State: u.State, Suburb: u.Suburb, Prefix: p}
		if _, done := completed[child.Key()]; !done {
			children = append(children, child)
		}
	}
	return children
}

// shouldSubdivide holds when the unit's results were likely truncated and
// there is depth left to split into.
func (s *adaptiveStrategy) shouldSubdivide(u Unit, resultCount int) bool {
	if u.Depth() >= s.maxDepth {
		return false
	}
	if resultCount >= s.pageLimit {
		return true
	}
	_, hv := s.highVolume[u.Key()]
	return hv
}

func (s *adaptiveStrategy) EstimateTotal() int {
	// Geometric series over the prefix tree; the real count depends on how
	// many buckets saturate, so this is the worst case.
	total := 0
	width := len(basePrefixes(s.testPrefix))
	for d := 1; d <= s.maxDepth; d++ {
		total += width
		width *= len(Alphabet)
	}
	return total
}

func (s *adaptiveStrategy) Describe() string {
	return "adaptive prefix search"
}
