// Package run wires one scraping run end to end: validate input, crawl,
// merge with an optional upload and encode the export.
package run

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/shelfscan/config"
	"github.com/use-agent/shelfscan/crawler"
	"github.com/use-agent/shelfscan/extractor"
	"github.com/use-agent/shelfscan/models"
	"github.com/use-agent/shelfscan/table"
)

// Input is what a user supplies for one run.
type Input struct {
	URL           string
	MaxProducts   int
	MaxPages      int
	UseBrowser    bool
	Headless      bool
	DisableImages bool
	Format        string

	// UploadName and UploadData carry an optional CSV/XLSX to append to.
	UploadName string
	UploadData []byte
}

// Plan is a validated Input, ready to execute.
type Plan struct {
	Source     *models.Source
	Format     table.Format
	Existing   *table.Table
	UploadName string
}

// Result is the outcome of a finished run.
type Result struct {
	Source *models.Source

	// Export is nil when nothing was scraped.
	Export *table.Export

	// Columns is the export column order.
	Columns []string

	NewRows   int
	TotalRows int
	Duration  time.Duration

	// Warning is set for an empty result.
	Warning string
}

// Empty reports whether the run scraped nothing.
func (r *Result) Empty() bool { return r.NewRows == 0 }

// Runner executes runs with shared configuration.
type Runner struct {
	cfg       *config.Config
	factory   crawler.EngineFactory
	extractor *extractor.Extractor
	now       func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithEngineFactory overrides how fetch engines are built.
func WithEngineFactory(f crawler.EngineFactory) Option {
	return func(r *Runner) { r.factory = f }
}

// WithExtractor overrides the field extractor.
func WithExtractor(e *extractor.Extractor) Option {
	return func(r *Runner) { r.extractor = e }
}

// WithClock overrides the clock used for filenames.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner builds a Runner from cfg.
func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		factory: crawler.DefaultEngines(cfg),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.extractor == nil {
		r.extractor = extractor.New(nil, extractor.WithReadabilityFallback(cfg.Extract.ReadabilityFallback))
	}
	return r
}

// Prepare validates in and parses the upload. Every error is an
// InputFailure and nothing has been fetched yet.
func (r *Runner) Prepare(in Input) (*Plan, error) {
	src, err := models.NewSource(in.URL)
	if err != nil {
		return nil, err
	}
	src.UseBrowser = in.UseBrowser
	src.Headless = in.Headless
	src.DisableImages = in.DisableImages
	src.MaxProducts = in.MaxProducts
	src.MaxPages = in.MaxPages
	src.DiscoveryWorkers = r.cfg.Crawl.DiscoveryWorkers
	src.ExtractionWorkers = r.cfg.Crawl.ExtractionWorkers
	if err := src.Validate(); err != nil {
		return nil, err
	}

	format, err := table.ParseFormat(in.Format)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Source: src, Format: format}
	if in.UploadName != "" {
		existing, err := table.Read(in.UploadName, in.UploadData)
		if err != nil {
			return nil, err
		}
		slog.Info("existing data loaded", "file", in.UploadName, "rows", existing.Len())
		plan.Existing = existing
		plan.UploadName = in.UploadName
	}
	return plan, nil
}

// Execute crawls plan.Source and builds the export. A setup failure is
// returned as an error; an empty crawl is a Result with a Warning.
func (r *Runner) Execute(ctx context.Context, plan *Plan, progress crawler.ProgressFunc) (*Result, error) {
	start := time.Now()

	c := crawler.New(plan.Source, r.factory, r.extractor, crawler.WithProgress(progress))
	records, err := c.Run(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{Source: plan.Source, NewRows: len(records), Duration: time.Since(start)}
	if len(records) == 0 {
		res.Warning = models.EmptyResultGuidance
		slog.Warn("empty result", "url", plan.Source.BaseURL, "use_browser", plan.Source.UseBrowser)
		return res, nil
	}

	fresh := table.FromRecords(records)
	merged := fresh
	if plan.Existing != nil {
		merged = table.Merge(plan.Existing, fresh)
	}

	name := table.Filename(plan.UploadName, plan.Source.Domain, plan.Format, r.now())
	exp, err := table.Encode(merged, plan.Format, name)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInternal, "failed to encode export", err)
	}

	res.Export = exp
	res.Columns = merged.Columns
	res.TotalRows = merged.Len()
	slog.Info("export ready",
		"file", exp.Filename,
		"new_rows", res.NewRows,
		"total_rows", res.TotalRows,
		"bytes", len(exp.Data),
		"duration", res.Duration,
	)
	return res, nil
}

// Run is Prepare followed by Execute.
func (r *Runner) Run(ctx context.Context, in Input, progress crawler.ProgressFunc) (*Result, error) {
	plan, err := r.Prepare(in)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, plan, progress)
}
