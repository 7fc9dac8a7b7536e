package discovery

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/regharvest/regharvest/internal/checkpoint"
	"github.com/regharvest/regharvest/internal/registry"
	"github.com/regharvest/regharvest/internal/search"
	"github.com/regharvest/regharvest/internal/throttle"
)

// fakeDriver serves canned result pages per unit key and can be told to fail
// a number of times first.
type fakeDriver struct {
	pages       map[string][]registry.ResultPage
	failures    map[string]int
	searches    []string
	resets      int
	searchErr   error
	cancelAfter int
	cancel      context.CancelFunc
}

func queryKey(q registry.Query) string {
	u := search.Unit{Profession: q.Profession, State: q.State, Suburb: q.Suburb, Prefix: q.NamePrefix}
	return u.Key()
}

func (d *fakeDriver) Search(_ context.Context, q registry.Query, page int) (*registry.ResultPage, error) {
	key := queryKey(q)
	d.searches = append(d.searches, fmt.Sprintf("%s@%d", key, page))
	if d.cancel != nil && len(d.searches) == d.cancelAfter {
		d.cancel()
	}
	if d.failures[key] > 0 {
		d.failures[key]--
		if d.searchErr != nil {
			return nil, d.searchErr
		}
		return nil, errors.New("search failed")
	}
	pages := d.pages[key]
	if page > len(pages) {
		return &registry.ResultPage{}, nil
	}
	return &pages[page-1], nil
}

func (d *fakeDriver) ResetSession(context.Context) error {
	d.resets++
	return nil
}

func (d *fakeDriver) Close() error { return nil }

func fastThrottle(longThreshold int) *throttle.Controller {
	return throttle.New(throttle.Config{
		BaseDelay:      time.Millisecond,
		FailureStep:    time.Millisecond,
		Jitter:         -1,
		MinDelay:       time.Millisecond,
		ShortThreshold: 100,
		ShortCooldown:  time.Millisecond,
		LongThreshold:  longThreshold,
		LongCooldown:   time.Millisecond,
	})
}

func newTestStore(t *testing.T) *checkpoint.Store {
	t.Helper()
	s, err := checkpoint.Open(checkpoint.Config{Dir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s
}

func newTestOrchestrator(t *testing.T, cfg Config, driver *fakeDriver, strategy search.Strategy, store *checkpoint.Store) *Orchestrator {
	t.Helper()
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Millisecond
	}
	return New(cfg, driver, store, strategy, fastThrottle(100), nil, zap.NewNop())
}

func adaptiveStrategy(t *testing.T, opts search.Options) search.Strategy {
	t.Helper()
	s, err := search.New(search.ModeAdaptive, opts)
	require.NoError(t, err)
	return s
}

func TestRunRecordsAndCompletes(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{pages: map[string][]registry.ResultPage{
		"A": {{IDs: []string{"MED1", "MED2"}}},
	}}
	store := newTestStore(t)
	strategy := adaptiveStrategy(t, search.Options{TestPrefix: "A", MaxDepth: 2})
	o := newTestOrchestrator(t, Config{}, driver, strategy, store)

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.NewIDs)
	require.Equal(t, 1, res.CompletedUnits)
	require.Equal(t, []string{"MED1", "MED2"}, store.Discovered())
	require.True(t, store.IsCompleted("A"))
}

func TestRunPaginatesUntilLastPage(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{pages: map[string][]registry.ResultPage{
		"A": {
			{IDs: []string{"MED1"}, HasNext: true},
			{IDs: []string{"MED2"}, HasNext: true},
			{IDs: []string{"MED3"}},
		},
	}}
	store := newTestStore(t)
	strategy := adaptiveStrategy(t, search.Options{TestPrefix: "A", MaxDepth: 1})
	o := newTestOrchestrator(t, Config{}, driver, strategy, store)

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, res.NewIDs)
	require.Equal(t, []string{"A@1", "A@2", "A@3"}, driver.searches)
}

func TestRunHonorsPaginationLimit(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{pages: map[string][]registry.ResultPage{
		"A": {
			{IDs: []string{"MED1"}, HasNext: true},
			{IDs: []string{"MED2"}, HasNext: true},
			{IDs: []string{"MED3"}, HasNext: true},
		},
	}}
	store := newTestStore(t)
	strategy := adaptiveStrategy(t, search.Options{TestPrefix: "A", MaxDepth: 1})
	o := newTestOrchestrator(t, Config{PaginationLimit: 2}, driver, strategy, store)

	_, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"A@1", "A@2"}, driver.searches)
}

func TestRunExpandsSaturatedUnitDepthFirst(t *testing.T) {
	t.Parallel()

	full := make([]string, 3)
	for i := range full {
		full[i] = fmt.Sprintf("MED%d", i)
	}
	driver := &fakeDriver{pages: map[string][]registry.ResultPage{
		"A": {{IDs: full}},
	}}
	store := newTestStore(t)
	// PageLimit 3 makes the canned page saturated, so A splits into AA..AZ.
	strategy := adaptiveStrategy(t, search.Options{TestPrefix: "A", MaxDepth: 2, PageLimit: 3})
	o := newTestOrchestrator(t, Config{}, driver, strategy, store)

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 26, res.CompletedUnits)
	require.Equal(t, "A@1", driver.searches[0])
	require.Equal(t, "AA@1", driver.searches[1])
	require.Equal(t, "AZ@1", driver.searches[26])
	require.True(t, store.IsCompleted("AA"))
	// The children subsume A's coverage; A itself stays open so a crash
	// before the children finish cannot strand them.
	require.False(t, store.IsCompleted("A"))
}

func TestRunInterruptedExpansionSurvivesResume(t *testing.T) {
	t.Parallel()

	full := []string{"MED0", "MED1", "MED2"}
	store := newTestStore(t)
	strategy := adaptiveStrategy(t, search.Options{TestPrefix: "A", MaxDepth: 2, PageLimit: 3})

	// First run dies right after A expands and AA finishes.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	driver := &fakeDriver{
		pages:       map[string][]registry.ResultPage{"A": {{IDs: full}}},
		cancelAfter: 2,
		cancel:      cancel,
	}
	o := newTestOrchestrator(t, Config{}, driver, strategy, store)
	_, err := o.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"A@1", "AA@1"}, driver.searches)
	require.True(t, store.IsCompleted("AA"))
	require.False(t, store.IsCompleted("A"), "expanded unit must stay open until its children finish")

	// The resumed run re-walks A and picks up the remaining children.
	driver2 := &fakeDriver{pages: map[string][]registry.ResultPage{"A": {{IDs: full}}}}
	o2 := newTestOrchestrator(t, Config{}, driver2, strategy, store)
	res, err := o2.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 25, res.CompletedUnits)
	require.Equal(t, "A@1", driver2.searches[0])
	require.Equal(t, "AB@1", driver2.searches[1])
	require.Equal(t, "AZ@1", driver2.searches[25])
	require.True(t, store.IsCompleted("AZ"))
}

func TestRunResumesInterruptedUnitFirst(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{pages: map[string][]registry.ResultPage{
		"A": {{IDs: []string{"MED1"}}},
		"B": {{IDs: []string{"MED2"}}},
		"C": {{IDs: []string{"MED3"}}},
	}}
	store := newTestStore(t)
	s, err := search.New(search.ModeComprehensive, search.Options{MaxDepth: 1})
	require.NoError(t, err)
	for _, u := range s.Plan(nil) {
		if u.Key() != "A" && u.Key() != "B" && u.Key() != "C" {
			store.MarkUnitComplete(u.Key())
		}
	}
	// B was mid-search when the previous run stopped.
	store.SetPosition("B", 2)
	o := newTestOrchestrator(t, Config{}, driver, s, store)

	_, err = o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"B@1", "A@1", "C@1"}, driver.searches)
}

func TestRunRetriesFailedUnitAtTail(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{
		pages: map[string][]registry.ResultPage{
			"A": {{IDs: []string{"MED1"}}},
			"B": {{IDs: []string{"MED2"}}},
		},
		failures: map[string]int{"A": 1},
	}
	store := newTestStore(t)
	s, err := search.New(search.ModeComprehensive, search.Options{MaxDepth: 1})
	require.NoError(t, err)
	// Complete everything except A and B up front.
	for _, u := range s.Plan(nil) {
		if u.Key() != "A" && u.Key() != "B" {
			store.MarkUnitComplete(u.Key())
		}
	}
	o := newTestOrchestrator(t, Config{}, driver, s, store)

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.RetriedUnits)
	require.Zero(t, res.AbandonedUnits)
	// A failed, B ran, then A succeeded from the back of the queue.
	require.Equal(t, []string{"A@1", "B@1", "A@1"}, driver.searches)
	require.True(t, store.IsCompleted("A"))
	require.Equal(t, 2, res.NewIDs)
}

func TestRunAbandonsAfterMaxRetries(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{failures: map[string]int{"A": 10}}
	store := newTestStore(t)
	strategy := adaptiveStrategy(t, search.Options{TestPrefix: "A", MaxDepth: 1})
	o := newTestOrchestrator(t, Config{MaxRetries: 2}, driver, strategy, store)

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.AbandonedUnits)
	require.Equal(t, 1, res.RetriedUnits)
	// Abandoned on the second failure, so exactly MaxRetries attempts.
	require.Len(t, driver.searches, 2)
	require.True(t, store.IsCompleted("A"), "abandoned unit must not be retried on resume")
	require.Equal(t, []string{"A"}, store.AbandonedUnits())
	require.Equal(t, 2, store.Summary().Stats.Errors, "one error per failed attempt")
}

func TestRunLongCooldownResetsSession(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{
		pages:    map[string][]registry.ResultPage{"A": {{IDs: []string{"MED1"}}}},
		failures: map[string]int{"A": 3},
	}
	store := newTestStore(t)
	strategy := adaptiveStrategy(t, search.Options{TestPrefix: "A", MaxDepth: 1})
	cfg := Config{MaxRetries: 5}
	o := New(cfg, driver, store, strategy, fastThrottle(3), nil, zap.NewNop())
	o.cfg.RetryDelay = time.Millisecond

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, driver.resets, "third consecutive failure must refresh the session")
	require.Equal(t, 1, res.CompletedUnits)
}

func TestRunSkipsCompletedUnitsOnResume(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{pages: map[string][]registry.ResultPage{
		"B": {{IDs: []string{"MED2"}}},
	}}
	store := newTestStore(t)
	s, err := search.New(search.ModeComprehensive, search.Options{MaxDepth: 1})
	require.NoError(t, err)
	for _, u := range s.Plan(nil) {
		if u.Key() != "B" {
			store.MarkUnitComplete(u.Key())
		}
	}
	o := newTestOrchestrator(t, Config{}, driver, s, store)

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"B@1"}, driver.searches)
	require.Equal(t, 1, res.CompletedUnits)
}

func TestRunCanceledContextSavesAndReturns(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{}
	store := newTestStore(t)
	strategy := adaptiveStrategy(t, search.Options{TestPrefix: "A", MaxDepth: 1})
	o := newTestOrchestrator(t, Config{}, driver, strategy, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, driver.searches)
}

func TestRunDuplicateIDsAcrossUnitsCountOnce(t *testing.T) {
	t.Parallel()

	driver := &fakeDriver{pages: map[string][]registry.ResultPage{
		"A": {{IDs: []string{"MED1", "MED2"}}},
		"B": {{IDs: []string{"MED2", "MED3"}}},
	}}
	store := newTestStore(t)
	s, err := search.New(search.ModeComprehensive, search.Options{MaxDepth: 1})
	require.NoError(t, err)
	for _, u := range s.Plan(nil) {
		if u.Key() != "A" && u.Key() != "B" {
			store.MarkUnitComplete(u.Key())
		}
	}
	o := newTestOrchestrator(t, Config{}, driver, s, store)

	res, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, res.NewIDs)
	require.Equal(t, []string{"MED1", "MED2", "MED3"}, store.Discovered())
}
