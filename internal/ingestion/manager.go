package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/abandoned-explorer/internal/broadcast"
	"github.com/mr1hm/abandoned-explorer/internal/config"
	"github.com/mr1hm/abandoned-explorer/internal/metrics"
	"github.com/mr1hm/abandoned-explorer/internal/models"
	"github.com/mr1hm/abandoned-explorer/internal/overpass"
	"github.com/mr1hm/abandoned-explorer/internal/ratelimit"
	"github.com/mr1hm/abandoned-explorer/internal/regions"
	"github.com/mr1hm/abandoned-explorer/internal/repository"
	"github.com/mr1hm/abandoned-explorer/internal/worker"
)

// Countries are large queries; never hit the interpreter faster than this.
const minCountryDelay = 3 * time.Second

type QueryBuilder interface {
	Build(ctx context.Context, scope models.Scope) (overpass.Query, error)
}

type Source interface {
	Execute(ctx context.Context, q overpass.Query) (*overpass.Response, error)
}

type Publisher interface {
	PublishBatch(ctx context.Context, locations []models.Location) error
}

type RegionCatalog interface {
	Resolve(name string) ([]regions.Target, error)
}

type Options struct {
	RequestDelay    time.Duration
	ScopeDelay      time.Duration
	BatchSize       int
	BatchDelay      time.Duration
	AbortOnDegraded bool

	// Scheduled runs, used by serve.
	ScheduleInterval time.Duration
	ScheduleRegions  []string
	QueueSize        int
}

func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		RequestDelay:    cfg.Scraper.RequestDelay,
		ScopeDelay:      cfg.Scraper.ScopeDelay,
		BatchSize:       cfg.Scraper.BatchSize,
		BatchDelay:      cfg.Scraper.BatchDelay,
		AbortOnDegraded: cfg.Scraper.AbortOnDegraded,
		QueueSize:       cfg.Worker.BufferSize,
	}
	if cfg.Schedule.Enabled {
		opts.ScheduleInterval = cfg.Schedule.Interval
		opts.ScheduleRegions = cfg.Schedule.Regions
	}
	return opts
}

// Deps are the collaborators of a Manager. Broadcaster, Publisher, Catalog
// and Metrics are optional.
type Deps struct {
	Builder     QueryBuilder
	Source      Source
	Normalizer  *Normalizer
	Repo        repository.LocationRepository
	Catalog     RegionCatalog
	Broadcaster *broadcast.Broadcaster
	Publisher   Publisher
	Clock       clockwork.Clock
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// ScopeResult is the outcome of scraping one scope. Err is nil when the
// scope succeeded, even if some records were skipped or failed.
type ScopeResult struct {
	Name      string
	Scope     models.Scope
	Degraded  bool
	Elements  int
	Normalize NormalizeStats
	Save      repository.SaveResult
	Duration  time.Duration
	Err       error
}

func (r ScopeResult) Succeeded() bool {
	return r.Err == nil
}

// RunSummary aggregates the scopes of one run. Categories and Total are
// read back from the store after the last scope.
type RunSummary struct {
	Scopes          []ScopeResult
	Succeeded       int
	Failed          int
	Inserted        int
	Skipped         int
	FailedRecords   int
	ElementsSkipped int
	Categories      []repository.CategoryCount
	Total           int
}

// Add folds one scope result into the totals.
func (s *RunSummary) Add(r ScopeResult) {
	s.Scopes = append(s.Scopes, r)
	if r.Succeeded() {
		s.Succeeded++
	} else {
		s.Failed++
	}
	s.Inserted += r.Save.Inserted
	s.Skipped += r.Save.Skipped
	s.FailedRecords += r.Save.Failed
	s.ElementsSkipped += r.Normalize.Skipped
}

// FailedScopes names the scopes that did not complete.
func (s *RunSummary) FailedScopes() []string {
	var names []string
	for _, r := range s.Scopes {
		if !r.Succeeded() {
			names = append(names, r.Name)
		}
	}
	return names
}

type Manager struct {
	opts        Options
	builder     QueryBuilder
	source      Source
	normalizer  *Normalizer
	repo        repository.LocationRepository
	catalog     RegionCatalog
	broadcaster *broadcast.Broadcaster
	publisher   Publisher
	clock       clockwork.Clock
	metrics     *metrics.Metrics
	logger      *slog.Logger

	requests  *ratelimit.Scheduler
	countries *ratelimit.Scheduler

	// One outstanding source query at a time.
	scrapeMu sync.Mutex

	pool *worker.WorkerPool[[]string]
	wg   sync.WaitGroup
}

func NewManager(opts Options, deps Deps) *Manager {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		opts:        opts,
		builder:     deps.Builder,
		source:      deps.Source,
		normalizer:  deps.Normalizer,
		repo:        deps.Repo,
		catalog:     deps.Catalog,
		broadcaster: deps.Broadcaster,
		publisher:   deps.Publisher,
		clock:       clock,
		metrics:     deps.Metrics,
		logger:      logger,
		requests:    ratelimit.NewScheduler(clock, opts.RequestDelay),
		countries:   ratelimit.NewScheduler(clock, max(opts.RequestDelay, minCountryDelay)),
	}
}

// ScrapeBBox scrapes a single bounding box.
func (m *Manager) ScrapeBBox(ctx context.Context, box models.BBox) ScopeResult {
	if err := box.Validate(); err != nil {
		return ScopeResult{Name: box.String(), Scope: models.BBoxScope(box), Err: err}
	}
	return m.ScrapeScope(ctx, regions.Target{Name: box.String(), Scope: models.BBoxScope(box)})
}

// ScrapePlace geocodes a place name and scrapes the box around it.
func (m *Manager) ScrapePlace(ctx context.Context, name string) ScopeResult {
	return m.ScrapeScope(ctx, regions.Target{Name: name, Scope: models.PlaceScope(name)})
}

// ScrapePlaces scrapes each place in order, pausing between them.
func (m *Manager) ScrapePlaces(ctx context.Context, names []string) RunSummary {
	targets := make([]regions.Target, 0, len(names))
	for _, n := range names {
		targets = append(targets, regions.Target{Name: n, Scope: models.PlaceScope(n)})
	}
	return m.ScrapeTargets(ctx, targets)
}

// ScrapeRegion scrapes one catalog region.
func (m *Manager) ScrapeRegion(ctx context.Context, name string) (RunSummary, error) {
	return m.ScrapeRegions(ctx, []string{name})
}

// ScrapeRegions resolves every name before scraping anything, so a typo
// fails fast instead of after hours of work.
func (m *Manager) ScrapeRegions(ctx context.Context, names []string) (RunSummary, error) {
	targets, err := m.resolveRegions(names)
	if err != nil {
		return RunSummary{}, err
	}

	m.logger.Info("starting region run",
		"regions", names, "scopes", len(targets), "request_delay", m.requests.Interval())
	return m.ScrapeTargets(ctx, targets), nil
}

// CheckRegions reports the first name the catalog cannot resolve.
func (m *Manager) CheckRegions(names []string) error {
	_, err := m.resolveRegions(names)
	return err
}

func (m *Manager) resolveRegions(names []string) ([]regions.Target, error) {
	if m.catalog == nil {
		return nil, errors.New("no region catalog configured")
	}

	var targets []regions.Target
	for _, name := range names {
		resolved, err := m.catalog.Resolve(name)
		if err != nil {
			return nil, err
		}
		targets = append(targets, resolved...)
	}
	return targets, nil
}

// ScrapeTargets runs targets sequentially. A failed scope is logged and the
// run continues. Every BatchSize scopes the pause is BatchDelay instead of
// ScopeDelay.
func (m *Manager) ScrapeTargets(ctx context.Context, targets []regions.Target) RunSummary {
	var summary RunSummary

	if m.metrics != nil {
		m.metrics.ScrapeRunning.Set(1)
		defer m.metrics.ScrapeRunning.Set(0)
	}

	for i, target := range targets {
		if i > 0 {
			delay := m.opts.ScopeDelay
			if i%m.opts.BatchSize == 0 {
				delay = m.opts.BatchDelay
				m.logger.Info("batch complete, pausing", "completed", i, "remaining", len(targets)-i, "delay", delay)
			}
			if err := ratelimit.Sleep(ctx, m.clock, delay); err != nil {
				m.logger.Warn("run interrupted", "completed", i, "remaining", len(targets)-i)
				break
			}
		}

		m.logger.Info("scraping scope", "progress", fmt.Sprintf("%d/%d", i+1, len(targets)), "scope", target.Name)
		summary.Add(m.ScrapeScope(ctx, target))
	}

	m.finishSummary(ctx, &summary)
	return summary
}

// ScrapeScope runs one query, normalizes the response, stores the result and
// fans out newly inserted locations.
func (m *Manager) ScrapeScope(ctx context.Context, target regions.Target) (res ScopeResult) {
	m.scrapeMu.Lock()
	defer m.scrapeMu.Unlock()

	res = ScopeResult{Name: target.Name, Scope: target.Scope}
	start := m.clock.Now()
	defer func() {
		res.Duration = m.clock.Since(start)
		m.recordScope(res)
	}()

	if err := m.requests.Wait(ctx); err != nil {
		res.Err = err
		return res
	}
	if target.Country {
		if err := m.countries.Wait(ctx); err != nil {
			res.Err = err
			return res
		}
	}

	q, err := m.builder.Build(ctx, target.Scope)
	if err != nil {
		res.Err = fmt.Errorf("error building query: %w", err)
		return res
	}
	if q.Degraded {
		res.Degraded = true
		if m.opts.AbortOnDegraded {
			res.Err = q.Err()
			m.logger.Error("refusing unscoped query", "scope", target.Name, "reason", q.Reason)
			return res
		}
		m.logger.Warn("running unscoped query", "scope", target.Name, "reason", q.Reason)
	}

	resp, err := m.source.Execute(ctx, q)
	if err != nil {
		res.Err = fmt.Errorf("error querying overpass: %w", err)
		m.logger.Error("scope failed", "scope", target.Name, "error", err)
		return res
	}
	res.Elements = len(resp.Elements)

	locations, stats := m.normalizer.NormalizeAll(ctx, resp.Elements)
	res.Normalize = stats
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	saved, err := m.repo.SaveBatch(ctx, locations)
	if err != nil {
		res.Err = fmt.Errorf("error saving locations: %w", err)
		m.logger.Error("scope failed", "scope", target.Name, "error", err)
		return res
	}
	res.Save = saved

	m.fanOut(ctx, locations, saved.InsertedIDs)

	m.logger.Info("scope complete",
		"scope", target.Name,
		"elements", res.Elements,
		"inserted", saved.Inserted,
		"skipped", saved.Skipped,
		"failed", saved.Failed)
	return res
}

// fanOut sends inserted locations to stream subscribers and the publisher.
// Publish failures are logged; the records are already stored.
func (m *Manager) fanOut(ctx context.Context, locations []models.Location, insertedIDs []string) {
	if len(insertedIDs) == 0 || (m.broadcaster == nil && m.publisher == nil) {
		return
	}

	inserted := make(map[string]struct{}, len(insertedIDs))
	for _, id := range insertedIDs {
		inserted[id] = struct{}{}
	}
	fresh := make([]models.Location, 0, len(insertedIDs))
	for _, loc := range locations {
		if _, ok := inserted[loc.StableID]; ok {
			fresh = append(fresh, loc)
		}
	}

	if m.broadcaster != nil {
		for _, loc := range fresh {
			m.broadcaster.Broadcast(loc)
		}
	}
	if m.publisher != nil {
		if err := m.publisher.PublishBatch(ctx, fresh); err != nil {
			m.logger.Error("error publishing locations", "count", len(fresh), "error", err)
		}
	}
}

func (m *Manager) recordScope(res ScopeResult) {
	if m.metrics == nil {
		return
	}
	outcome := "succeeded"
	switch {
	case errors.Is(res.Err, overpass.ErrDegradedQuery):
		outcome = "degraded"
	case res.Err != nil:
		outcome = "failed"
	}
	m.metrics.ScopesCompleted.WithLabelValues(outcome).Inc()
	m.metrics.LocationsSaved.WithLabelValues("inserted").Add(float64(res.Save.Inserted))
	m.metrics.LocationsSaved.WithLabelValues("skipped").Add(float64(res.Save.Skipped))
	m.metrics.LocationsSaved.WithLabelValues("failed").Add(float64(res.Save.Failed))
}

// finishSummary reads store totals for the report. The run's own counts
// stay valid if this fails.
func (m *Manager) finishSummary(ctx context.Context, summary *RunSummary) {
	if ctx.Err() != nil {
		return
	}
	categories, err := m.repo.CountByCategory(ctx)
	if err != nil {
		m.logger.Error("error reading category breakdown", "error", err)
		return
	}
	total, err := m.repo.Count(ctx)
	if err != nil {
		m.logger.Error("error reading location count", "error", err)
		return
	}
	summary.Categories = categories
	summary.Total = total

	m.logger.Info("run complete",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"inserted", summary.Inserted,
		"skipped", summary.Skipped,
		"failed_records", summary.FailedRecords,
		"total", summary.Total)
}

// Start launches scheduled region runs when a schedule is configured. Runs
// go through a single-worker pool so they never overlap.
func (m *Manager) Start(ctx context.Context) {
	if m.opts.ScheduleInterval <= 0 || len(m.opts.ScheduleRegions) == 0 {
		return
	}

	processor := func(ctx context.Context, names []string) error {
		_, err := m.ScrapeRegions(ctx, names)
		return err
	}

	m.pool = worker.NewWorkerPool(1, max(m.opts.QueueSize, 1), processor, m.logger)
	m.pool.Start(ctx)

	m.wg.Add(1)
	go m.runSchedule(ctx)
}

func (m *Manager) runSchedule(ctx context.Context) {
	defer m.wg.Done()
	m.logger.Info("starting scheduled scrapes", "regions", m.opts.ScheduleRegions, "interval", m.opts.ScheduleInterval)

	ticker := m.clock.NewTicker(m.opts.ScheduleInterval)
	defer ticker.Stop()

	// Initial run
	m.enqueue(m.opts.ScheduleRegions)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("scheduler shutting down")
			return
		case <-ticker.Chan():
			m.enqueue(m.opts.ScheduleRegions)
		}
	}
}

// Enqueue queues a region run on the scheduler's worker. It reports false
// when scheduling is not running or the queue is full.
func (m *Manager) Enqueue(names []string) bool {
	if m.pool == nil {
		return false
	}
	return m.enqueue(names)
}

func (m *Manager) enqueue(names []string) bool {
	if !m.pool.TrySubmit(names) {
		m.logger.Warn("scrape queue full, dropping run", "regions", names)
		return false
	}
	return true
}

// Stop waits for the scheduler and worker to exit. Cancel the context
// passed to Start first.
func (m *Manager) Stop() {
	m.wg.Wait()
	if m.pool != nil {
		m.pool.Stop()
	}
	m.logger.Info("ingestion manager stopped")
}
