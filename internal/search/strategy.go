// Package search models the space of registry queries: units, the strategies
// that enumerate and subdivide them, and the frontier they are scheduled on.
package search

import "fmt"

// Mode selects a search strategy.
type Mode string

const (
	ModeAdaptive         Mode = "adaptive"
	ModeComprehensive    Mode = "comprehensive"
	ModeMultiDimensional Mode = "multi"
)

// Strategy enumerates the initial search plan and decides how a finished unit
// subdivides. Implementations are stateless with respect to progress; the
// completed set is always passed in so a resumed run plans only what is left.
type Strategy interface {
	// Plan returns the initial units in execution order, excluding any whose
	// key is already completed.
	Plan(completed map[string]struct{}) []Unit

	// Expand returns the child units a finished unit fans out into, excluding
	// completed ones. Strategies that pre-enumerate everything return nil.
	Expand(u Unit, resultCount int, completed map[string]struct{}) []Unit

	// EstimateTotal is the upper bound on units this strategy can produce,
	// used for progress reporting only.
	EstimateTotal() int

	// Describe names the strategy for logs and status output.
	Describe() string
}

// Options tune strategy construction. Zero values fall back to the defaults
// the registry was profiled with.
type Options struct {
	Catalog        Catalog
	MaxDepth       int
	PageLimit      int
	IncludeSuburbs bool
	// TestPrefix restricts enumeration to a single prefix, for dry runs
	// against the live site.
	TestPrefix string
}

const (
	// DefaultMaxDepth bounds prefix subdivision. Four characters is enough
	// to bring every observed surname bucket under the page limit.
	DefaultMaxDepth = 4

	// DefaultPageLimit is the registry's maximum results per page. A page
	// at this size is assumed truncated.
	DefaultPageLimit = 100
)

func (o *Options) applyDefaults() {
	if o.Catalog.Professions == nil && o.Catalog.States == nil {
		o.Catalog = DefaultCatalog()
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.PageLimit <= 0 {
		o.PageLimit = DefaultPageLimit
	}
}

// New constructs the strategy for mode.
func New(mode Mode, opts Options) (Strategy, error) {
	opts.applyDefaults()
	switch mode {
	case ModeAdaptive:
		return newAdaptive(opts), nil
	case ModeComprehensive:
		return newComprehensive(opts), nil
	case ModeMultiDimensional:
		return newMultiDimensional(opts), nil
	default:
		return nil, fmt.Errorf("unknown search mode %q", mode)
	}
}

// basePrefixes returns the depth-1 prefixes, honoring a test prefix override.
func basePrefixes(testPrefix string) []string {
	if testPrefix != "" {
		return []string{testPrefix}
	}
	out := make([]string, 0, len(Alphabet))
	for _, c := range Alphabet {
		out = append(out, string(c))
	}
	return out
}

// childPrefixes returns prefix+A .. prefix+Z in order.
func childPrefixes(prefix string) []string {
	out := make([]string, 0, len(Alphabet))
	for _, c := range Alphabet {
		out = append(out, prefix+string(c))
	}
	return out
}
