package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/config"
	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/domain"
	"github.com/archeltaneka/melbourne-air-quality-pedestrian-traffic-analysis/internal/observability"
)

type stubResolver struct {
	areas map[string]domain.CanonicalArea
}

func (s stubResolver) Resolve(_ context.Context, raw string) (domain.CanonicalArea, bool) {
	area, ok := s.areas[raw]
	return area, ok
}

func (s stubResolver) SkippedCount() int { return 0 }
func (s stubResolver) Skipped() []string { return nil }

type stubDownloader struct {
	content map[string]string // url -> file body; absent urls fail
	calls   []string
}

func (d *stubDownloader) FetchIfMissing(_ context.Context, url, dest string) error {
	d.calls = append(d.calls, url)
	body, ok := d.content[url]
	if !ok {
		return fmt.Errorf("fetch %s: status 404", url)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(body), 0o644)
}

type recordingSink struct {
	rows []domain.JoinedRow
	err  error
}

func (s *recordingSink) PublishJoined(_ context.Context, rows []domain.JoinedRow) error {
	s.rows = append(s.rows, rows...)
	return s.err
}

const airFixture = "datetime_AEST,location_name,latitude,longitude,parameter_name,value\n" +
	"2022-03-14 09:00:00,Melbourne CBD,-37.8075,144.9700,PM2.5,12.4\n" +
	"2022-03-14 09:00:00,Melbourne CBD,-37.8075,144.9700,CO,-\n" +
	"2022-03-14 09:00:00,Melbourne CBD,-37.8075,144.9700,BSP,1.2\n" +
	"2022-03-14 10:00:00,Melbourne CBD,-37.8075,144.9700,PM2.5,13.1\n"

const pedestrianFixture = "Date,Hour,Bourke Street Mall\n" +
	"14/03/2022,9,1543\n" +
	"14/03/2022,10,1687\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DataDir:   dir,
		OutputDir: filepath.Join(dir, "out"),
		DataYear:  2022,
	}
}

func testResolver() stubResolver {
	return stubResolver{areas: map[string]domain.CanonicalArea{
		"Bourke Street Mall": {
			Name: "Bourke Street Mall",
			Geo:  domain.Geo{Lat: -37.8136, Lon: 144.9631},
		},
	}}
}

func writeSources(t *testing.T, cfg *config.Config) {
	t.Helper()
	require.NoError(t, EnsureDirs(cfg))
	require.NoError(t, os.WriteFile(cfg.AirQualityFile(), []byte(airFixture), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PedestrianDir(), "March_2022.csv"), []byte(pedestrianFixture), 0o644))
}

func newTestPipeline(cfg *config.Config, resolver AreaResolver, downloader Downloader, sink JoinedSink) *Pipeline {
	return New(cfg, resolver, downloader, sink,
		slog.Default(), observability.NewMetricsForTesting(), clockwork.NewRealClock())
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestPipeline_Run(t *testing.T) {
	cfg := testConfig(t)
	writeSources(t, cfg)

	p := newTestPipeline(cfg, testResolver(), &stubDownloader{}, nil)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.AirRecords)
	assert.Equal(t, 2, summary.AirRows)
	assert.Equal(t, 1, summary.AirIgnored)
	assert.Zero(t, summary.AirRejected)
	assert.Equal(t, 2, summary.PedestrianRecords)
	assert.Equal(t, 2, summary.PedestrianRows)
	assert.Equal(t, 2, summary.JoinedRows)
	assert.Zero(t, summary.Unjoined)
	assert.Zero(t, summary.UnresolvedAreas)

	airFinal := readCSV(t, filepath.Join(cfg.OutputDir, "air_quality", "air_quality_final.csv"))
	require.Len(t, airFinal, 3)
	assert.Equal(t, []string{"datetime_AEST", "CO", "NO2", "O3", "PM2.5", "PM10"}, airFinal[0])
	// CO reported "-" by the source: stays an empty field, never 0.
	assert.Equal(t, []string{"2022-03-14 09:00:00", "", "", "", "12.4", ""}, airFinal[1])
	assert.Equal(t, "13.1", airFinal[2][4])

	pedFinal := readCSV(t, filepath.Join(cfg.OutputDir, "pedestrian", "pedestrian_count_final.csv"))
	require.Len(t, pedFinal, 3)
	assert.Equal(t, "Bourke Street Mall", pedFinal[1][3])
	assert.Equal(t, "1543", pedFinal[1][4])
	assert.Equal(t, "12.4", pedFinal[1][8])

	for _, view := range []string{"joined_hourly.csv", "joined_daily.csv", "joined_monthly.csv"} {
		_, err := os.Stat(filepath.Join(cfg.OutputDir, "aggregates", view))
		assert.NoError(t, err, view)
	}
}

func TestPipeline_RunPublishesToSink(t *testing.T) {
	cfg := testConfig(t)
	writeSources(t, cfg)
	sink := &recordingSink{}

	p := newTestPipeline(cfg, testResolver(), &stubDownloader{}, sink)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, sink.rows, summary.JoinedRows)
}

func TestPipeline_SinkFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t)
	writeSources(t, cfg)
	sink := &recordingSink{err: fmt.Errorf("broker unreachable")}

	p := newTestPipeline(cfg, testResolver(), &stubDownloader{}, sink)
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	// Outputs are still written.
	_, statErr := os.Stat(filepath.Join(cfg.OutputDir, "pedestrian", "pedestrian_count_final.csv"))
	assert.NoError(t, statErr)
}

func TestPipeline_MissingAirSourceIsFatal(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, EnsureDirs(cfg))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PedestrianDir(), "March_2022.csv"), []byte(pedestrianFixture), 0o644))

	p := newTestPipeline(cfg, testResolver(), &stubDownloader{}, nil)
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "normalize_air")

	// Nothing was written.
	_, statErr := os.Stat(filepath.Join(cfg.OutputDir, "air_quality", "air_quality_final.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPipeline_NoPedestrianFilesIsFatal(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, EnsureDirs(cfg))
	require.NoError(t, os.WriteFile(cfg.AirQualityFile(), []byte(airFixture), 0o644))

	p := newTestPipeline(cfg, testResolver(), &stubDownloader{}, nil)
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pedestrian source files")
}

func TestPipeline_DownloadStage(t *testing.T) {
	cfg := testConfig(t)
	cfg.AirQualityURL = "https://example.org/air.csv"
	cfg.PedestrianBaseURL = "https://example.org/ped/"
	require.NoError(t, EnsureDirs(cfg))

	downloader := &stubDownloader{content: map[string]string{
		"https://example.org/air.csv":                airFixture,
		"https://example.org/ped/March_2022.csv":     pedestrianFixture,
		"https://example.org/ped/September_2022.csv": "Date,Hour,Bourke Street Mall\n5/09/2022,9,300\n",
	}}

	p := newTestPipeline(cfg, testResolver(), downloader, nil)
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	// One air fetch plus one per month; absent months are tolerated.
	assert.Len(t, downloader.calls, 13)
	assert.Equal(t, 2+1, summary.PedestrianRecords)
}

func TestPipeline_Readiness(t *testing.T) {
	cfg := testConfig(t)
	writeSources(t, cfg)
	p := newTestPipeline(cfg, testResolver(), &stubDownloader{}, nil)

	require.Error(t, p.CheckReadiness(context.Background()))

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}
