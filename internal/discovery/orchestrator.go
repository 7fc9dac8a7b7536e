// Package discovery runs the first scraper phase: working the search
// frontier against the register and recording every registration ID it
// surfaces, checkpointing as it goes.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/regharvest/regharvest/internal/checkpoint"
	"github.com/regharvest/regharvest/internal/metrics"
	"github.com/regharvest/regharvest/internal/registry"
	"github.com/regharvest/regharvest/internal/search"
	"github.com/regharvest/regharvest/internal/throttle"
)

// Config tunes the discovery loop.
type Config struct {
	// PaginationLimit caps how many result pages one unit is walked through.
	PaginationLimit int
	// MaxRetries is how many times a failed unit is re-queued before it is
	// abandoned.
	MaxRetries int
	// RetryDelay is slept before a failed unit goes back on the frontier.
	RetryDelay time.Duration
	// SaveEveryUnit saves a checkpoint after each completed unit instead of
	// relying on the count-based cadence. Combination runs use this: their
	// units are cheap and numerous, and losing one costs a whole re-search.
	SaveEveryUnit bool
}

func (c *Config) applyDefaults() {
	if c.PaginationLimit <= 0 {
		c.PaginationLimit = 10
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 5 * time.Second
	}
}

// Result summarizes a discovery run.
type Result struct {
	NewIDs         int
	CompletedUnits int
	RetriedUnits   int
	AbandonedUnits int
}

// Orchestrator owns one discovery run. Single-threaded; the register cannot
// absorb parallel clients without blocking the session.
type Orchestrator struct {
	cfg      Config
	driver   registry.QueryDriver
	store    *checkpoint.Store
	strategy search.Strategy
	throttle *throttle.Controller
	sleeper  throttle.Sleeper
	metrics  *metrics.Metrics
	log      *zap.Logger
}

// New builds an orchestrator. metrics may be nil for bare runs.
func New(
	cfg Config,
	driver registry.QueryDriver,
	store *checkpoint.Store,
	strategy search.Strategy,
	ctrl *throttle.Controller,
	m *metrics.Metrics,
	log *zap.Logger,
) *Orchestrator {
	cfg.applyDefaults()
	if m == nil {
		m = metrics.New()
	}
	return &Orchestrator{
		cfg:      cfg,
		driver:   driver,
		store:    store,
		strategy: strategy,
		throttle: ctrl,
		sleeper:  throttle.SystemSleeper(),
		metrics:  m,
		log:      log.With(zap.String("run_id", uuid.NewString())),
	}
}

// Run works the frontier until it drains or ctx is canceled. Progress saved
// so far survives either way.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	completed := o.store.CompletedSet()
	plan := o.strategy.Plan(completed)
	frontier := search.NewFrontier(plan)
	if key, _ := o.store.Position(); key != "" {
		// Resume where the last run stopped mid-unit.
		frontier.Promote(key)
	}
	retries := make(map[string]int)

	o.log.Info("discovery starting",
		zap.String("strategy", o.strategy.Describe()),
		zap.Int("planned_units", len(plan)),
		zap.Int("already_completed", len(completed)),
		zap.Int("estimated_total", o.strategy.EstimateTotal()))

	var res Result
	for {
		if err := ctx.Err(); err != nil {
			return res, o.interrupted(res, err)
		}
		unit, ok := frontier.Pop(completed)
		if !ok {
			break
		}
		o.metrics.FrontierSize.Set(float64(frontier.Len()))

		count, err := o.searchUnit(ctx, unit)
		if err != nil {
			if ctx.Err() != nil {
				return res, o.interrupted(res, ctx.Err())
			}
			if err := o.handleFailure(ctx, unit, retries, frontier, completed, &res); err != nil {
				return res, err
			}
			continue
		}
		res.NewIDs += count

		children := o.strategy.Expand(unit, count, completed)
		if len(children) > 0 {
			// The children cover the parent; marking it complete now would
			// orphan them if the run dies before they are searched.
			frontier.PushFront(children)
		} else {
			o.store.MarkUnitComplete(unit.Key())
			completed[unit.Key()] = struct{}{}
			res.CompletedUnits++
			o.metrics.UnitsCompleted.WithLabelValues("completed").Inc()
		}

		if o.cfg.SaveEveryUnit {
			if err := o.store.Save(); err != nil {
				return res, fmt.Errorf("save after unit %q: %w", unit.Key(), err)
			}
		}
	}

	if err := o.store.Save(); err != nil {
		return res, fmt.Errorf("final save: %w", err)
	}
	o.log.Info("discovery finished",
		zap.Int("new_ids", res.NewIDs),
		zap.Int("completed_units", res.CompletedUnits),
		zap.Int("abandoned_units", res.AbandonedUnits))
	return res, nil
}

// searchUnit pages through one unit's results, recording IDs as they appear.
// It returns how many IDs in the unit were new.
func (o *Orchestrator) searchUnit(ctx context.Context, unit search.Unit) (int, error) {
	query := registry.Query{
		Profession: unit.Profession,
		State:      unit.State,
		Suburb:     unit.Suburb,
		NamePrefix: unit.Prefix,
	}

	totalNew := 0
	resultCount := 0
	for page := 1; page <= o.cfg.PaginationLimit; page++ {
		o.store.SetPosition(unit.Key(), page)
		if err := o.throttle.Wait(ctx); err != nil {
			return totalNew, err
		}

		result, err := o.driver.Search(ctx, query, page)
		if err != nil {
			return totalNew, fmt.Errorf("unit %q page %d: %w", unit.Key(), page, err)
		}
		o.throttle.Report(true)
		o.metrics.PagesScraped.Inc()
		resultCount += len(result.IDs)

		pageNew := 0
		for _, id := range result.IDs {
			added, err := o.store.RecordDiscovery(id)
			if err != nil {
				return totalNew, fmt.Errorf("record %q: %w", id, err)
			}
			if added {
				pageNew++
				o.metrics.IDsDiscovered.Inc()
			}
		}
		totalNew += pageNew
		if pageNew > 0 {
			if _, err := o.store.MaybeSave(); err != nil {
				return totalNew, err
			}
		}

		if !result.HasNext {
			break
		}
	}

	o.log.Info("unit searched",
		zap.String("unit", unit.Key()),
		zap.Int("results", resultCount),
		zap.Int("new_ids", totalNew))
	// Expansion keys off the raw result count, not just the new IDs: a
	// saturated prefix full of known IDs still hides practitioners.
	return resultCount, nil
}

// handleFailure reports the failure to the throttle, honors any cooldown it
// signals, and either re-queues or abandons the unit.
func (o *Orchestrator) handleFailure(
	ctx context.Context,
	unit search.Unit,
	retries map[string]int,
	frontier *search.Frontier,
	completed map[string]struct{},
	res *Result,
) error {
	sig := o.throttle.Report(false)
	if sig != throttle.SignalNone {
		o.metrics.Cooldowns.WithLabelValues(sig.String()).Inc()
		// Persist before the pause so a kill during the cooldown loses
		// nothing, and refresh the session before a long one.
		if err := o.store.Save(); err != nil {
			return fmt.Errorf("save before cooldown: %w", err)
		}
		if sig == throttle.SignalLong {
			if err := o.driver.ResetSession(ctx); err != nil {
				o.log.Warn("session reset failed", zap.Error(err))
			}
		}
		o.log.Warn("cooling down",
			zap.String("tier", sig.String()),
			zap.String("unit", unit.Key()))
		if err := o.throttle.Cooldown(ctx, sig); err != nil {
			return err
		}
	}

	retries[unit.Key()]++
	o.store.RecordError()
	if retries[unit.Key()] < o.cfg.MaxRetries {
		o.log.Warn("unit failed, re-queueing",
			zap.String("unit", unit.Key()),
			zap.Int("attempt", retries[unit.Key()]))
		if err := o.sleeper.Sleep(ctx, o.cfg.RetryDelay); err != nil {
			return err
		}
		frontier.PushBack(unit)
		res.RetriedUnits++
		o.metrics.UnitsRetried.Inc()
		return nil
	}

	o.log.Error("unit abandoned after retries", zap.String("unit", unit.Key()))
	o.store.MarkAbandoned(unit.Key())
	completed[unit.Key()] = struct{}{}
	res.AbandonedUnits++
	o.metrics.UnitsAbandoned.Inc()
	o.metrics.UnitsCompleted.WithLabelValues("abandoned").Inc()
	return nil
}

// interrupted saves what we have and decorates the causal error.
func (o *Orchestrator) interrupted(res Result, cause error) error {
	if err := o.store.Save(); err != nil {
		return errors.Join(cause, fmt.Errorf("save on interrupt: %w", err))
	}
	o.log.Info("discovery interrupted, progress saved",
		zap.Int("new_ids", res.NewIDs),
		zap.Int("completed_units", res.CompletedUnits))
	return cause
}
