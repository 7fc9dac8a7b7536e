// Package extraction runs the second scraper phase: fetching the detail page
// of every discovered ID, parsing it into a record, and fanning the record
// out to the backup, the CSV, and any configured downstream sinks.
package extraction

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
	"github.com/regharvest/regharvest/internal/throttle"
)

// RecordStore persists records to a database. Optional.
type RecordStore interface {
	Upsert(ctx context.Context, rec *registry.Record) error
}

// EventPublisher announces extracted records downstream. Optional.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RecordEvent is the payload published per extracted record.
type RecordEvent struct {
	EventID     string           `json:"event_id"`
	RunID       string           `json:"run_id"`
	ExtractedAt time.Time        `json:"extracted_at"`
	Record      *registry.Record `json:"record"`
}

// Config tunes the extraction engine.
type Config struct {
	// SaveInterval is how many extractions pass between checkpoint saves.
	SaveInterval int
	// Topic is the publisher topic for record events.
	Topic string
}

func (c *Config) applyDefaults() {
	if c.SaveInterval <= 0 {
		c.SaveInterval = 50
	}
	if c.Topic == "" {
		c.Topic = "practitioner-records"
	}
}

// Options select what one extraction run covers.
type Options struct {
	// Limit caps how many IDs are attempted. Zero means no cap.
	Limit int
	// RetryFailed clears the failed set so previously failed IDs are
	// attempted again. Without it they are skipped.
	RetryFailed bool
}

// Result summarizes an extraction run.
type Result struct {
	Extracted int
	Failed    int
	Skipped   int
}

// Engine drives one extraction pass over the pending backlog.
type Engine struct {
	cfg      Config
	fetcher  registry.DetailFetcher
	parser   registry.RecordParser
	store    *checkpoint.Store
	throttle *throttle.Controller
	backup   *JSONLBackup
	csv      *CSVSink
	records  RecordStore
	events   EventPublisher
	metrics  *metrics.Metrics
	log      *zap.Logger
	runID    string
}

// New builds an engine. records, events, and m may be nil.
func New(
	cfg Config,
	fetcher registry.DetailFetcher,
	parser registry.RecordParser,
	store *checkpoint.Store,
	ctrl *throttle.Controller,
	backup *JSONLBackup,
	csv *CSVSink,
	records RecordStore,
	events EventPublisher,
	m *metrics.Metrics,
	log *zap.Logger,
) *Engine {
	cfg.applyDefaults()
	if m == nil {
		m = metrics.New()
	}
	runID := uuid.NewString()
	return &Engine{
		cfg:      cfg,
		fetcher:  fetcher,
		parser:   parser,
		store:    store,
		throttle: ctrl,
		backup:   backup,
		csv:      csv,
		records:  records,
		events:   events,
		metrics:  m,
		log:      log.With(zap.String("run_id", runID)),
		runID:    runID,
	}
}

// Run works the pending backlog in discovery order. Progress saved so far
// survives cancellation.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	return e.RunWithOptions(ctx, Options{})
}

// RunWithOptions runs one extraction pass.
func (e *Engine) RunWithOptions(ctx context.Context, opts Options) (Result, error) {
	failed := make(map[string]struct{})
	for _, id := range e.store.FailedIDs() {
		if opts.RetryFailed {
			e.store.ClearFailed(id)
			continue
		}
		failed[id] = struct{}{}
	}

	pending := e.store.Pending()
	e.metrics.PendingIDs.Set(float64(len(pending)))
	e.log.Info("extraction starting",
		zap.Int("pending", len(pending)),
		zap.Int("backed_up", e.backup.Count()),
		zap.Int("limit", opts.Limit))

	var res Result
	sinceSave := 0
	for _, id := range pending {
		if err := ctx.Err(); err != nil {
			return res, e.interrupted(res, err)
		}
		if opts.Limit > 0 && res.Extracted+res.Failed >= opts.Limit {
			break
		}
		if _, skip := failed[id]; skip {
			res.Skipped++
			continue
		}
		// Already backed up means the record was captured but the
		// checkpoint missed the mark; reconcile without refetching.
		if e.backup.Has(id) {
			e.store.MarkExtracted(id)
			res.Skipped++
			continue
		}

		if err := e.extractOne(ctx, id, &res); err != nil {
			if ctx.Err() != nil {
				return res, e.interrupted(res, ctx.Err())
			}
			return res, err
		}

		sinceSave++
		if sinceSave >= e.cfg.SaveInterval {
			if err := e.store.Save(); err != nil {
				return res, fmt.Errorf("periodic save: %w", err)
			}
			sinceSave = 0
		}
		e.metrics.PendingIDs.Dec()
	}

	if err := e.store.Save(); err != nil {
		return res, fmt.Errorf("final save: %w", err)
	}
	e.log.Info("extraction finished",
		zap.Int("extracted", res.Extracted),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// extractOne handles a single ID end to end. Failures are recorded and do
// not abort the run; only infrastructure errors (sink writes, checkpoint
// saves) propagate.
func (e *Engine) extractOne(ctx context.Context, id string, res *Result) error {
	if err := e.throttle.Wait(ctx); err != nil {
		return err
	}

	body, err := e.fetcher.Fetch(ctx, id)
	if err != nil {
		return e.recordFailure(ctx, id, "fetch", err, res)
	}

	rec, err := e.parser.Parse(body)
	if err != nil {
		kind := "parse"
		if errors.Is(err, registry.ErrIncomplete) {
			kind = "incomplete"
		} else if errors.Is(err, registry.ErrBlocked) {
			kind = "blocked"
		}
		return e.recordFailure(ctx, id, kind, err, res)
	}
	if rec.RegID == "" {
		rec.RegID = id
	}

	// Backup first: once the append returns, the record is durable and
	// every other sink can be rebuilt from it.
	if err := e.backup.Append(rec); err != nil {
		return err
	}
	if err := e.csv.Write(rec); err != nil {
		return err
	}
	if e.records != nil {
		if err := e.records.Upsert(ctx, rec); err != nil {
			e.log.Warn("record upsert failed", zap.String("reg_id", id), zap.Error(err))
		}
	}
	if e.events != nil {
		event := RecordEvent{
			EventID:     uuid.NewString(),
			RunID:       e.runID,
			ExtractedAt: time.Now().UTC(),
			Record:      rec,
		}
		if _, err := e.events.Publish(ctx, e.cfg.Topic, event); err != nil {
			e.log.Warn("record publish failed", zap.String("reg_id", id), zap.Error(err))
		}
	}

	e.store.MarkExtracted(id)
	e.throttle.Report(true)
	e.metrics.RecordsExtracted.Inc()
	res.Extracted++
	return nil
}

// recordFailure marks the ID failed, reports it to the throttle, and honors
// any cooldown the failure run tripped.
func (e *Engine) recordFailure(ctx context.Context, id, kind string, cause error, res *Result) error {
	e.log.Warn("extraction failed",
		zap.String("reg_id", id),
		zap.String("kind", kind),
		zap.Error(cause))
	e.store.MarkFailed(id)
	e.metrics.ExtractionErrors.WithLabelValues(kind).Inc()
	res.Failed++

	sig := e.throttle.Report(false)
	if sig == throttle.SignalNone {
		return nil
	}
	e.metrics.Cooldowns.WithLabelValues(sig.String()).Inc()
	if err := e.store.Save(); err != nil {
		return fmt.Errorf("save before cooldown: %w", err)
	}
	if sig == throttle.SignalLong {
		e.fetcher.ResetSession()
	}
	e.log.Warn("cooling down", zap.String("tier", sig.String()))
	return e.throttle.Cooldown(ctx, sig)
}

func (e *Engine) interrupted(res Result, cause error) error {
	if err := e.store.Save(); err != nil {
		return errors.Join(cause, fmt.Errorf("save on interrupt: %w", err))
	}
	e.log.Info("extraction interrupted, progress saved",
		zap.Int("extracted", res.Extracted))
	return cause
}
