package search

// multiDimensionalStrategy crosses profession, state, and name prefix, with
// an optional suburb dimension for the high-volume states. Filtering a query
// down to a combination keeps each result set under the page limit without
// deep prefix recursion, so units never subdivide.
type multiDimensionalStrategy struct {
	catalog        Catalog
	includeSuburbs bool
	testPrefix     string
	highVolume     map[string]struct{}
}

func newMultiDimensional(opts Options) *multiDimensionalStrategy {
	hv := make(map[string]struct{}, len(opts.Catalog.HighVolumeStates))
	for _, st := range opts.Catalog.HighVolumeStates {
		hv[st] = struct{}{}
	}
	return &multiDimensionalStrategy{
		catalog:        opts.Catalog,
		includeSuburbs: opts.IncludeSuburbs,
		testPrefix:     opts.TestPrefix,
		highVolume:     hv,
	}
}

func (s *multiDimensionalStrategy) Plan(completed map[string]struct{}) []Unit {
	prefixes := basePrefixes(s.testPrefix)
	var units []Unit
	appendUnit := func(u Unit) {
		if _, done := completed[u.Key()]; !done {
			units = append(units, u)
		}
	}
	for _, profession := range s.catalog.Professions {
		for _, state := range s.catalog.States {
			for _, prefix := range prefixes {
				appendUnit(Unit{Profession: profession, State: state, Prefix: prefix})
			}
			if !s.suburbsFor(state) {
				continue
			}
			for _, suburb := range s.catalog.Suburbs[state] {
				for _, prefix := range prefixes {
					appendUnit(Unit{Profession: profession, State: state, Suburb: suburb, Prefix: prefix})
				}
			}
		}
	}
	return units
}

func (s *multiDimensionalStrategy) suburbsFor(state string) bool {
	if !s.includeSuburbs {
		return false
	}
	_, ok := s.highVolume[state]
	return ok
}

func (s *multiDimensionalStrategy) Expand(Unit, int, map[string]struct{}) []Unit {
	return nil
}

func (s *multiDimensionalStrategy) EstimateTotal() int {
	prefixes := len(basePrefixes(s.testPrefix))
	total := len(s.catalog.Professions) * len(s.catalog.States) * prefixes
	if s.includeSuburbs {
		for _, state := range s.catalog.HighVolumeStates {
			total += len(s.catalog.Professions) * len(s.catalog.Suburbs[state]) * prefixes
		}
	}
	return total
}

func (s *multiDimensionalStrategy) Describe() string {
	if s.includeSuburbs {
		return "multi-dimensional search (profession x state x suburb x prefix)"
	}
	return "multi-dimensional search (profession x state x prefix)"
}
