// Package pipeline orchestrates the full batch run: download, normalize,
// resolve, join, aggregate, persist. Stages execute in strict sequence; a
// stage either completes fully or aborts the run. Output files are written
// only after their computation succeeds, so a fatal condition always leaves
// the previous outputs in place.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/aggregate"
	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/config"
	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/domain"
	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/export"
	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/ingest"
	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/observability"
)

var months = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Downloader fetches a remote source to a local path.
type Downloader interface {
	FetchIfMissing(ctx context.Context, url, dest string) error
}

// AreaResolver is the resolver surface the pipeline needs: resolution plus
// skip-list accounting for the run summary.
type AreaResolver interface {
	domain.AreaResolver
	SkippedCount() int
	Skipped() []string
}

// JoinedSink receives the joined rows, e.g. a Kafka topic. Sink failures are
// logged, not fatal: the CSV outputs are the contract, the sink is best
// effort.
type JoinedSink interface {
	PublishJoined(ctx context.Context, rows []domain.JoinedRow) error
}

// Summary aggregates the per-stage rejection accounting of one run.
type Summary struct {
	StartedAt  time.Time
	FinishedAt time.Time

	AirRecords     int
	AirRows        int
	AirRejected    int
	AirIgnored     int
	AirDuplicates  int
	AirSkippedRows int

	PedestrianRecords     int
	PedestrianRows        int
	PedestrianRejected    int
	PedestrianSummed      int
	PedestrianSkippedRows int
	UnresolvedAreas       int

	JoinedRows int
	Unjoined   int
}

// Pipeline runs the batch ETL end to end.
type Pipeline struct {
	cfg        *config.Config
	resolver   AreaResolver
	downloader Downloader
	sink       JoinedSink
	logger     *slog.Logger
	metrics    *observability.Metrics
	clock      clockwork.Clock
	ready      atomic.Bool
}

// New creates a Pipeline. sink may be nil.
func New(cfg *config.Config, resolver AreaResolver, downloader Downloader, sink JoinedSink, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		resolver:   resolver,
		downloader: downloader,
		sink:       sink,
		logger:     logger,
		metrics:    metrics,
		clock:      clock,
	}
}

// CheckReadiness returns nil once the run has normalized at least one
// source, for the status server's /readyz.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not normalized any data yet")
	}
	return nil
}

// Run executes every stage in order and returns the run summary. A returned
// error is fatal per the error taxonomy: missing/unreadable source or a
// structural schema mismatch. Per-record problems only show up in the
// summary.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	summary := Summary{StartedAt: p.clock.Now()}
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	if err := p.stage("download", func() error { return p.download(ctx) }); err != nil {
		return summary, err
	}

	var airRows []domain.AirQualityRow
	if err := p.stage("normalize_air", func() error {
		var err error
		airRows, err = p.normalizeAir(&summary)
		return err
	}); err != nil {
		return summary, err
	}
	p.ready.Store(true)

	var pedRows []domain.PedestrianRow
	if err := p.stage("normalize_pedestrian", func() error {
		var err error
		pedRows, err = p.normalizePedestrian(ctx, &summary)
		return err
	}); err != nil {
		return summary, err
	}

	var joined []domain.JoinedRow
	if err := p.stage("join", func() error {
		var stats domain.JoinStats
		joined, stats = domain.Join(pedRows, airRows, p.cfg.AreaSiteOverrides)
		summary.JoinedRows = len(joined)
		summary.Unjoined = stats.Unjoined
		p.metrics.RowsJoined.Add(float64(len(joined)))
		p.metrics.RowsUnjoined.Add(float64(stats.Unjoined))
		for _, sample := range stats.RejectSamples {
			p.logger.Warn("row not joined", "detail", sample)
		}
		return nil
	}); err != nil {
		return summary, err
	}

	if p.sink != nil {
		if err := p.stage("publish", func() error {
			if err := p.sink.PublishJoined(ctx, joined); err != nil {
				p.logger.Warn("publishing joined rows failed", "error", err)
			}
			return nil
		}); err != nil {
			return summary, err
		}
	}

	views := make(map[aggregate.Granularity][]aggregate.Row, 3)
	if err := p.stage("aggregate", func() error {
		for _, g := range []aggregate.Granularity{aggregate.Hourly, aggregate.Daily, aggregate.Monthly} {
			views[g] = aggregate.Compute(joined, g)
		}
		return nil
	}); err != nil {
		return summary, err
	}

	if err := p.stage("persist", func() error {
		return p.persist(airRows, joined, views)
	}); err != nil {
		return summary, err
	}

	summary.FinishedAt = p.clock.Now()
	p.logSummary(summary)
	return summary, nil
}

// stage runs fn, timing it into the stage duration histogram.
func (p *Pipeline) stage(name string, fn func() error) error {
	p.logger.Info("stage starting", "stage", name)
	start := p.clock.Now()
	err := fn()
	elapsed := p.clock.Since(start)
	p.metrics.StageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		p.logger.Error("stage failed", "stage", name, "duration", elapsed, "error", err)
		return fmt.Errorf("%s: %w", name, err)
	}
	p.logger.Info("stage complete", "stage", name, "duration", elapsed)
	return nil
}

// download fetches whichever sources have URLs configured. A source with no
// URL must already exist locally; that is checked by the ingest stages.
func (p *Pipeline) download(ctx context.Context) error {
	if p.cfg.AirQualityURL != "" {
		if err := p.downloader.FetchIfMissing(ctx, p.cfg.AirQualityURL, p.cfg.AirQualityFile()); err != nil {
			return err
		}
	}
	if p.cfg.PedestrianBaseURL != "" {
		for _, month := range months {
			url := fmt.Sprintf("%s%s_%d.csv", p.cfg.PedestrianBaseURL, month, p.cfg.DataYear)
			dest := filepath.Join(p.cfg.PedestrianDir(), fmt.Sprintf("%s_%d.csv", month, p.cfg.DataYear))
			if err := p.downloader.FetchIfMissing(ctx, url, dest); err != nil {
				// A single absent month is tolerable; the run fails later
				// only if no pedestrian file at all is available.
				p.logger.Warn("pedestrian month unavailable", "month", month, "error", err)
			}
		}
	}
	return nil
}

func (p *Pipeline) normalizeAir(summary *Summary) ([]domain.AirQualityRow, error) {
	records, skipped, err := ingest.ReadAirQuality(p.cfg.AirQualityFile())
	if err != nil {
		return nil, err
	}
	p.metrics.RecordsIngested.WithLabelValues("air_quality").Add(float64(len(records)))
	p.metrics.RecordsRejected.WithLabelValues("air_quality", "ragged_row").Add(float64(skipped))

	rows, stats := domain.NormalizeAirQuality(records)
	p.metrics.RowsNormalized.WithLabelValues("air_quality").Add(float64(len(rows)))
	p.metrics.RecordsRejected.WithLabelValues("air_quality", "timestamp").Add(float64(stats.Rejected))
	for _, sample := range stats.RejectSamples {
		p.logger.Warn("air record rejected", "detail", sample)
	}

	summary.AirRecords = len(records)
	summary.AirRows = len(rows)
	summary.AirRejected = stats.Rejected
	summary.AirIgnored = stats.IgnoredParameter
	summary.AirDuplicates = stats.Duplicates
	summary.AirSkippedRows = skipped
	return rows, nil
}

func (p *Pipeline) normalizePedestrian(ctx context.Context, summary *Summary) ([]domain.PedestrianRow, error) {
	files, err := p.pedestrianFiles()
	if err != nil {
		return nil, err
	}

	var records []domain.RawPedestrianRecord
	skipped := 0
	for _, file := range files {
		fileRecords, fileSkipped, err := ingest.ReadPedestrian(file)
		if err != nil {
			return nil, err
		}
		records = append(records, fileRecords...)
		skipped += fileSkipped
	}
	p.metrics.RecordsIngested.WithLabelValues("pedestrian").Add(float64(len(records)))
	p.metrics.RecordsRejected.WithLabelValues("pedestrian", "ragged_row").Add(float64(skipped))

	rows, stats := domain.NormalizePedestrian(ctx, records, p.resolver)
	p.metrics.RowsNormalized.WithLabelValues("pedestrian").Add(float64(len(rows)))
	p.metrics.RecordsRejected.WithLabelValues("pedestrian", "count").Add(float64(stats.Rejected))
	p.metrics.RecordsRejected.WithLabelValues("pedestrian", "unresolved").Add(float64(stats.Unresolved))
	for _, sample := range stats.RejectSamples {
		p.logger.Warn("pedestrian record rejected", "detail", sample)
	}
	for _, name := range p.resolver.Skipped() {
		p.logger.Warn("area unresolved", "area", name)
	}

	summary.PedestrianRecords = len(records)
	summary.PedestrianRows = len(rows)
	summary.PedestrianRejected = stats.Rejected
	summary.PedestrianSummed = stats.Summed
	summary.PedestrianSkippedRows = skipped
	summary.UnresolvedAreas = p.resolver.SkippedCount()
	return rows, nil
}

// pedestrianFiles lists the monthly files present on disk. At least one must
// exist; otherwise the required source is missing, which is fatal.
func (p *Pipeline) pedestrianFiles() ([]string, error) {
	pattern := filepath.Join(p.cfg.PedestrianDir(), fmt.Sprintf("*_%d.csv", p.cfg.DataYear))
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("list pedestrian sources: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no pedestrian source files match %s", pattern)
	}
	sort.Strings(files)
	return files, nil
}

func (p *Pipeline) persist(airRows []domain.AirQualityRow, joined []domain.JoinedRow, views map[aggregate.Granularity][]aggregate.Row) error {
	airFinal := filepath.Join(p.cfg.OutputDir, "air_quality", "air_quality_final.csv")
	if err := export.WriteAirQualityFinal(airFinal, domain.SummarizeHourly(airRows)); err != nil {
		return err
	}

	pedFinal := filepath.Join(p.cfg.OutputDir, "pedestrian", "pedestrian_count_final.csv")
	if err := export.WritePedestrianFinal(pedFinal, joined); err != nil {
		return err
	}

	for g, rows := range views {
		path := filepath.Join(p.cfg.OutputDir, "aggregates", fmt.Sprintf("joined_%s.csv", g))
		if err := export.WriteAggregate(path, rows, g); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) logSummary(s Summary) {
	p.logger.Info("run complete",
		"duration", s.FinishedAt.Sub(s.StartedAt),
		"air_records", s.AirRecords,
		"air_rows", s.AirRows,
		"air_rejected", s.AirRejected,
		"air_ignored_parameters", s.AirIgnored,
		"air_duplicates", s.AirDuplicates,
		"pedestrian_records", s.PedestrianRecords,
		"pedestrian_rows", s.PedestrianRows,
		"pedestrian_rejected", s.PedestrianRejected,
		"pedestrian_summed", s.PedestrianSummed,
		"unresolved_areas", s.UnresolvedAreas,
		"joined_rows", s.JoinedRows,
		"unjoined", s.Unjoined,
	)
}

// EnsureDirs creates the data directories the run writes into.
func EnsureDirs(cfg *config.Config) error {
	dirs := []string{
		filepath.Dir(cfg.AirQualityFile()),
		cfg.PedestrianDir(),
		filepath.Join(cfg.OutputDir, "aggregates"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir %s: %w", dir, err)
		}
	}
	return nil
}
