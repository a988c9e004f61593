package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/raaihank/mention-sentinel/internal/compliance"
	"github.com/raaihank/mention-sentinel/internal/config"
	"github.com/raaihank/mention-sentinel/internal/entity"
	"github.com/raaihank/mention-sentinel/internal/logger"
	"github.com/raaihank/mention-sentinel/internal/mention"
	"github.com/raaihank/mention-sentinel/internal/metrics"
	"github.com/raaihank/mention-sentinel/internal/quarantine"
	"github.com/raaihank/mention-sentinel/internal/simulation"
	"github.com/raaihank/mention-sentinel/internal/stats"
)

// Orchestrator runs one tracked entity through every source adapter
// concurrently. It is immutable after construction; build a new one to apply
// a changed PipelineConfig.
type Orchestrator struct {
	cfg        config.PipelineConfig
	adapters   []Adapter
	builder    *entity.Builder
	gate       *compliance.Gate
	limiter    *adapterLimiter
	sink       Sink
	quarantine QuarantineRecorder
	observers  []Observer
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

// Option customizes an Orchestrator
type Option func(*Orchestrator)

// WithSink sets where accepted items are persisted
func WithSink(sink Sink) Option {
	return func(o *Orchestrator) {
		o.sink = sink
	}
}

// WithQuarantine sets where quarantine records are stored
func WithQuarantine(q QuarantineRecorder) Option {
	return func(o *Orchestrator) {
		o.quarantine = q
	}
}

// WithObservers registers run event observers
func WithObservers(observers ...Observer) Option {
	return func(o *Orchestrator) {
		o.observers = append(o.observers, observers...)
	}
}

// WithMetrics enables Prometheus metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// New creates an orchestrator. Invalid enforcement config, no adapters or
// duplicate adapter names are hard errors.
func New(cfg config.PipelineConfig, adapters []Adapter, log *logger.Logger, opts ...Option) (*Orchestrator, error) {
	if err := config.ValidatePipeline(cfg); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	if len(adapters) == 0 {
		return nil, ErrNoAdapters
	}

	seen := make(map[string]struct{}, len(adapters))
	for _, a := range adapters {
		name := strings.TrimSpace(a.Name())
		if name == "" {
			return nil, fmt.Errorf("%w: adapter with empty name", ErrInvalidRequest)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAdapter, name)
		}
		seen[name] = struct{}{}
	}

	detector, err := simulation.New(cfg.Simulation, log.WithComponent("simulation"))
	if err != nil {
		return nil, fmt.Errorf("failed to create simulation detector: %w", err)
	}

	o := &Orchestrator{
		cfg:        cfg,
		adapters:   append([]Adapter(nil), adapters...),
		builder:    entity.NewBuilder(cfg.Vocabulary),
		gate:       compliance.NewGate(detector, log),
		limiter:    newAdapterLimiter(cfg.AdapterRateLimit, cfg.AdapterBurst),
		quarantine: quarantine.NewMemoryStore(),
		logger:     log.WithComponent("pipeline"),
	}

	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// Adapters returns the names of the configured adapters
func (o *Orchestrator) Adapters() []string {
	names := make([]string, 0, len(o.adapters))
	for _, a := range o.adapters {
		names = append(names, a.Name())
	}
	return names
}

// run holds the read-only state shared by every adapter worker of one run
type run struct {
	id            string
	entityName    string
	fingerprint   *entity.Fingerprint
	queries       []string
	minConfidence float64
	logger        *logger.Logger
}

// batch is one adapter's output, merged into the run only once the adapter's
// whole per-item pipeline has finished
type batch struct {
	stats       *stats.Aggregator
	accepted    []mention.Item
	quarantined []quarantine.Record
	discarded   []mention.Item
}

// Run scans one entity. Only an invalid request is returned as an error;
// adapter failures, quarantines and discards are reported in the result.
// A cancelled ctx stops dispatch to further adapters and the result still
// holds consistent statistics for what completed.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	name := strings.Join(strings.Fields(req.EntityName), " ")
	if name == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, entity.ErrEmptyEntityName)
	}

	minConfidence := o.cfg.MinConfidence
	if req.MinConfidence > 0 {
		minConfidence = req.MinConfidence
	}
	if minConfidence > 1 {
		return nil, fmt.Errorf("%w: min confidence %.2f above 1", ErrInvalidRequest, minConfidence)
	}

	fp, err := o.builder.Build(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	r := &run{
		id:            uuid.NewString(),
		entityName:    fp.EntityName,
		fingerprint:   fp,
		queries:       entity.ExpandQueries(fp),
		minConfidence: minConfidence,
	}
	r.logger = o.logger.WithRunID(r.id).WithEntity(r.entityName)

	r.logger.Info("Starting scan",
		zap.Int("adapters", len(o.adapters)),
		zap.Int("queries", len(r.queries)),
		zap.Float64("min_confidence", minConfidence),
	)

	start := time.Now()
	agg := stats.New(r.id, r.entityName)
	agg.SetQueries(r.queries)

	result := &Result{RunID: r.id, Queries: r.queries}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.MaxConcurrentAdapters)

	for _, a := range o.adapters {
		if ctx.Err() != nil {
			r.logger.Warn("Scan cancelled, not dispatching remaining adapters",
				zap.String("next_adapter", a.Name()),
			)
			break
		}

		g.Go(func() error {
			b := o.runAdapter(ctx, r, a, agg)

			mu.Lock()
			result.Accepted = append(result.Accepted, b.accepted...)
			result.Quarantined = append(result.Quarantined, b.quarantined...)
			result.Discarded = append(result.Discarded, b.discarded...)
			mu.Unlock()

			agg.Merge(b.stats)
			return nil
		})
	}

	// workers never return errors
	_ = g.Wait()

	result.Stats = agg.Snapshot()
	o.metrics.ObserveRunLatency(time.Since(start))
	r.logger.LogScanStatistics(result.Stats)
	r.logger.Info("Scan complete", zap.String("summary", result.Stats.Summary()))

	for _, obs := range o.observers {
		obs.OnRunComplete(context.WithoutCancel(ctx), result.Stats)
	}

	return result, nil
}

// runAdapter performs generation, the adapter call and the per-item gate for one adapter
func (o *Orchestrator) runAdapter(ctx context.Context, r *run, a Adapter, agg *stats.Aggregator) *batch {
	name := a.Name()
	log := r.logger.WithAdapter(name)
	b := &batch{stats: stats.New(r.id, r.entityName)}

	if out := o.gate.Generate(compliance.Request{EntityName: r.entityName, Adapter: name, Queries: r.queries}); !out.Passed {
		log.Warn("Generation stage rejected adapter call", zap.String("reason", out.Reason))
		agg.RecordAdapterFailure(name, fmt.Errorf("generation: %s", out.Reason))
		return b
	}

	if err := o.limiter.Wait(ctx, name); err != nil {
		log.Warn("Adapter not called", zap.Error(err))
		agg.RecordAdapterFailure(name, err)
		return b
	}

	start := time.Now()
	items, err := o.fetch(ctx, a, r)
	o.metrics.ObserveAdapterLatency(name, err, time.Since(start))
	if err != nil {
		log.Warn("Adapter failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		agg.RecordAdapterFailure(name, err)
		return b
	}

	b.stats.RecordAdapterSuccess()
	log.Debug("Adapter returned items", zap.Int("items", len(items)))

	for _, raw := range items {
		item := mention.NewItem(name, raw)
		b.stats.RecordSeen()

		if ctx.Err() != nil {
			o.discard(b, item, mention.ReasonCancelled)
			continue
		}

		o.processItem(ctx, r, b, item, log)
	}

	return b
}

// fetch calls the adapter under the per-adapter timeout. An adapter that
// ignores its context is abandoned once the timeout fires.
func (o *Orchestrator) fetch(ctx context.Context, a Adapter, r *run) ([]mention.RawItem, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.AdapterTimeout)
	defer cancel()

	type fetchResult struct {
		items []mention.RawItem
		err   error
	}

	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fetchResult{err: fmt.Errorf("adapter panicked: %v", rec)}
			}
		}()
		items, err := a.Fetch(ctx, r.entityName, r.queries)
		done <- fetchResult{items: items, err: err}
	}()

	select {
	case res := <-done:
		return res.items, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("adapter %s: %w", a.Name(), ctx.Err())
	}
}

// processItem takes one item from approval to a terminal decision
func (o *Orchestrator) processItem(ctx context.Context, r *run, b *batch, item *mention.Item, log *logger.Logger) {
	if out := o.gate.Approve(item); !out.Passed {
		o.quarantineItem(ctx, r, b, item, out, log)
		return
	}

	// profile and article URLs often carry the name or handle
	match := entity.MatchText(item.Content+" "+item.URL, r.fingerprint)
	if match == nil {
		o.discard(b, item, mention.ReasonNoMatch)
		return
	}

	item.Match = match
	cleared := match.ConfidenceScore >= r.minConfidence
	b.stats.RecordMatch(match.MatchType, cleared)
	o.metrics.IncrementMatch(string(match.MatchType))

	if !cleared {
		o.discard(b, item, mention.ReasonLowConfidence)
		return
	}

	item.RiskTerms = entity.RiskTerms(item.Content, r.fingerprint)

	if out := o.gate.Deploy(item); !out.Passed {
		o.quarantineItem(ctx, r, b, item, out, log)
		return
	}

	item.Decision = mention.DecisionAccepted
	b.stats.RecordAccepted()
	o.metrics.IncrementDecision(string(mention.DecisionAccepted))

	if o.sink != nil {
		if err := o.sink.Store(ctx, item); err != nil {
			// the item stays accepted; the sink owns its retries
			b.stats.RecordSinkError()
			o.metrics.IncrementSinkErrors()
			log.Warn("Sink rejected accepted item", zap.Error(err), zap.String("url", item.URL))
		}
	}

	log.Debug("Item accepted",
		zap.String("match_type", string(match.MatchType)),
		zap.Float64("confidence", match.ConfidenceScore),
		zap.Strings("risk_terms", item.RiskTerms),
	)
	b.accepted = append(b.accepted, item.Snapshot())
}

func (o *Orchestrator) quarantineItem(ctx context.Context, r *run, b *batch, item *mention.Item, out compliance.Outcome, log *logger.Logger) {
	item.Stage = out.Stage
	item.Decision = mention.DecisionQuarantined
	item.Reason = out.Reason

	record := quarantine.NewRecord(r.id, r.entityName, item, out.Stage, out.Kind, out.Reason)
	b.stats.RecordQuarantined(string(out.Stage), string(out.Kind))
	o.metrics.IncrementDecision(string(mention.DecisionQuarantined))
	o.metrics.IncrementQuarantined(string(out.Stage), string(out.Kind))

	// audit records are kept even when the run is cancelled
	auditCtx := context.WithoutCancel(ctx)
	if err := o.quarantine.Record(auditCtx, record); err != nil {
		b.stats.RecordQuarantineError()
		log.Error("Failed to store quarantine record", zap.Error(err), zap.String("record_id", record.ID))
	}

	for _, obs := range o.observers {
		obs.OnQuarantine(auditCtx, record)
	}

	log.Debug("Item quarantined",
		zap.String("stage", string(out.Stage)),
		zap.String("kind", string(out.Kind)),
		zap.String("reason", out.Reason),
	)
	b.quarantined = append(b.quarantined, record)
}

func (o *Orchestrator) discard(b *batch, item *mention.Item, reason string) {
	item.Decision = mention.DecisionDiscarded
	item.Reason = reason
	b.stats.RecordDiscarded(reason)
	o.metrics.IncrementDecision(string(mention.DecisionDiscarded))
	b.discarded = append(b.discarded, item.Snapshot())
}
