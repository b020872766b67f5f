// Package pipeline orchestrates the ingest loop: walk the source
// listings, fetch record pages with bounded parallelism, parse and
// normalize each one, and funnel everything through a single
// coordinator that owns the dedup store and flushes the sinks.
//
// Every failure is record-scoped: a page that cannot be fetched,
// parsed, or normalized becomes a rejection-log row and processing
// continues. Only context cancellation stops the run.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/powderlab/avalanche-obs-ingest/internal/dedup"
	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
	"github.com/powderlab/avalanche-obs-ingest/internal/observability"
)

// Fetcher retrieves one raw page per URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (domain.RawPage, error)
}

// PageParser extracts records from record pages and references from
// listing pages.
type PageParser interface {
	Parse(page domain.RawPage) (domain.ParsedRecord, error)
	ParseListing(page domain.RawPage) ([]domain.RecordRef, error)
}

// Normalizer maps parsed records onto the stable schema.
type Normalizer interface {
	Normalize(rec domain.ParsedRecord) (domain.Observation, error)
}

// DatasetWriter persists pipeline output: the current view snapshot,
// audit-trail versions, and rejection-log rows.
type DatasetWriter interface {
	WriteCurrent(ctx context.Context, observations []domain.Observation) error
	AppendVersions(ctx context.Context, versions []domain.Observation) error
	AppendRejections(ctx context.Context, rejections []domain.Rejection) error
}

// Config holds the orchestration settings.
type Config struct {
	BaseURL       string
	SeasonStart   time.Time
	SeasonEnd     time.Time
	PageCap       int
	Workers       int
	BatchSize     int
	FlushInterval time.Duration
}

// Pipeline wires the stages together.
type Pipeline struct {
	fetcher    Fetcher
	parser     PageParser
	normalizer Normalizer
	store      *dedup.Store
	writers    []DatasetWriter
	logger     *slog.Logger
	metrics    *observability.Metrics
	cfg        Config
	ready      atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(fetcher Fetcher, parser PageParser, normalizer Normalizer, store *dedup.Store,
	writers []DatasetWriter, logger *slog.Logger, metrics *observability.Metrics, cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	return &Pipeline{
		fetcher:    fetcher,
		parser:     parser,
		normalizer: normalizer,
		store:      store,
		writers:    writers,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// CheckReadiness returns nil once the pipeline has processed at least
// one record (observation or rejection).
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any records yet")
	}
	return nil
}

// result is one worker outcome: exactly one of obs/rej is set.
type result struct {
	obs *domain.Observation
	rej *domain.Rejection
}

// Run executes one full ingest pass: listing walk, record processing,
// sink flushes, and a final current-view snapshot. It returns nil on
// normal completion and on context cancellation.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started",
		"workers", p.cfg.Workers,
		"season_start", p.cfg.SeasonStart.Format("2006-01-02"),
		"season_end", p.cfg.SeasonEnd.Format("2006-01-02"),
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	refs := make(chan domain.RecordRef, p.cfg.Workers)
	results := make(chan result, p.cfg.Workers)

	var producers sync.WaitGroup

	// Listing walker: the only stage that decides to stop fetching
	// more pages; it checks the context between pages.
	producers.Add(1)
	go func() {
		defer producers.Done()
		p.walkListings(ctx, refs, results)
		close(refs)
	}()

	// Fetch/parse/normalize workers. Parsing and normalization are
	// pure, so records are processed in arrival order with no shared
	// state until the coordinator.
	for i := 0; i < p.cfg.Workers; i++ {
		producers.Add(1)
		go func() {
			defer producers.Done()
			for ref := range refs {
				res := p.process(ctx, ref)
				select {
				case results <- res:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		producers.Wait()
		close(results)
	}()

	// Single-writer coordinator: owns the dedup store and all sink
	// appends, so identity-key state never needs finer locking.
	p.coordinate(ctx, results)

	if err := p.writeCurrentView(ctx); err != nil {
		p.logger.Error("current view write failed", "error", err)
	}

	if ctx.Err() != nil {
		p.logger.Info("pipeline stopping", "reason", ctx.Err())
	} else {
		p.logger.Info("pipeline finished", "current_view", p.store.Len())
	}
	return nil
}

// walkListings pages through the listing index until an empty page, the
// page cap, a listing failure, or cancellation. Listing failures are
// rejections too: they name the listing URL and stop the walk, matching
// the source's behavior of 404ing past the last page.
func (p *Pipeline) walkListings(ctx context.Context, refs chan<- domain.RecordRef, results chan<- result) {
	seen := make(map[string]struct{})

	for page := 0; p.cfg.PageCap <= 0 || page < p.cfg.PageCap; page++ {
		if ctx.Err() != nil {
			return
		}

		url := listingURL(p.cfg.BaseURL, p.cfg.SeasonStart, p.cfg.SeasonEnd, page)
		raw, err := p.fetcher.Fetch(ctx, url)
		if err != nil {
			if page > 0 {
				// Walked off the end of the archive.
				p.logger.Debug("listing walk ended", "page", page, "error", err)
				return
			}
			p.reject(ctx, results, url, domain.StageFetch, err)
			return
		}
		p.metrics.ListingPages.Inc()

		pageRefs, err := p.parser.ParseListing(raw)
		if err != nil {
			p.reject(ctx, results, url, domain.StageParse, err)
			return
		}
		if len(pageRefs) == 0 {
			p.logger.Debug("listing walk ended", "page", page)
			return
		}

		for _, ref := range pageRefs {
			if _, dup := seen[ref.URL]; dup {
				continue
			}
			seen[ref.URL] = struct{}{}
			select {
			case refs <- ref:
			case <-ctx.Done():
				return
			}
		}
	}
}

// process runs one record through fetch, parse, and normalize.
func (p *Pipeline) process(ctx context.Context, ref domain.RecordRef) result {
	raw, err := p.fetcher.Fetch(ctx, ref.URL)
	if err != nil {
		p.metrics.FetchErrors.Inc()
		rej := domain.NewRejection(ref.URL, domain.StageFetch, err)
		return result{rej: &rej}
	}
	p.metrics.PagesFetched.Inc()

	parsed, err := p.parser.Parse(raw)
	if err != nil {
		rej := domain.NewRejection(ref.URL, domain.StageParse, err)
		return result{rej: &rej}
	}

	obs, err := p.normalizer.Normalize(parsed)
	if err != nil {
		rej := domain.NewRejection(ref.URL, domain.StageNormalize, err)
		return result{rej: &rej}
	}
	p.metrics.RecordsParsed.Inc()

	return result{obs: &obs}
}

// coordinate consumes results until the channel closes, applying dedup
// and batching sink flushes by size and interval.
func (p *Pipeline) coordinate(ctx context.Context, results <-chan result) {
	var pendingVersions []domain.Observation
	var pendingRejections []domain.Rejection

	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case res, ok := <-results:
			if !ok {
				p.flush(ctx, &pendingVersions, &pendingRejections)
				return
			}
			p.ready.Store(true)

			if res.rej != nil {
				p.metrics.RecordsRejected.WithLabelValues(string(res.rej.Stage)).Inc()
				p.logger.Warn("record rejected",
					"url", res.rej.SourceURL,
					"stage", res.rej.Stage,
					"reason", res.rej.Reason,
				)
				pendingRejections = append(pendingRejections, *res.rej)
			} else {
				obs := *res.obs
				applied := p.store.Apply(obs)
				switch applied.Outcome {
				case dedup.OutcomeUnchanged:
					p.metrics.DedupUnchanged.Inc()
				default:
					obs.Version = applied.Version
					pendingVersions = append(pendingVersions, obs)
					p.metrics.AuditVersions.Inc()
					p.metrics.CurrentViewSize.Set(float64(p.store.Len()))
				}
			}

			if len(pendingVersions)+len(pendingRejections) >= p.cfg.BatchSize {
				p.flush(ctx, &pendingVersions, &pendingRejections)
			}

		case <-ticker.C:
			p.flush(ctx, &pendingVersions, &pendingRejections)
		}
	}
}

// flush appends pending versions and rejections to every writer. Sink
// errors are logged and do not stop the run; the dedup store still
// holds everything for the final current-view write.
func (p *Pipeline) flush(ctx context.Context, versions *[]domain.Observation, rejections *[]domain.Rejection) {
	if len(*versions) == 0 && len(*rejections) == 0 {
		return
	}
	start := time.Now()

	for _, w := range p.writers {
		if len(*versions) > 0 {
			if err := w.AppendVersions(ctx, *versions); err != nil {
				p.logger.Error("audit flush failed", "error", err, "rows", len(*versions))
			}
		}
		if len(*rejections) > 0 {
			if err := w.AppendRejections(ctx, *rejections); err != nil {
				p.logger.Error("rejection flush failed", "error", err, "rows", len(*rejections))
			}
		}
	}

	p.metrics.FlushDuration.Observe(time.Since(start).Seconds())
	*versions = (*versions)[:0]
	*rejections = (*rejections)[:0]
}

func (p *Pipeline) writeCurrentView(ctx context.Context) error {
	current := p.store.Current()
	var firstErr error
	for _, w := range p.writers {
		if err := w.WriteCurrent(ctx, current); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// reject routes a listing-stage failure into the results stream so it
// lands in the rejection log like any record failure.
func (p *Pipeline) reject(ctx context.Context, results chan<- result, url string, stage domain.Stage, err error) {
	rej := domain.NewRejection(url, stage, err)
	select {
	case results <- result{rej: &rej}:
	case <-ctx.Done():
	}
}
