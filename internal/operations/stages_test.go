package operations

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"msaloans/internal/config"
	"msaloans/internal/dataprocessing"
	"msaloans/internal/exporter"
	"msaloans/internal/files"
	"msaloans/internal/shared/testutil"
	"msaloans/pkg/contracts/domain"
)

type mockCensus struct{ mock.Mock }

func (m *mockCensus) FetchRegionIncome(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type mockCFPB struct{ mock.Mock }

func (m *mockCFPB) FetchLoans(ctx context.Context, ids []string) ([]byte, error) {
	args := m.Called(ctx, ids)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type mockSink struct{ mock.Mock }

func (m *mockSink) SaveAggregates(ctx context.Context, runID string, aggs []*domain.RegionAggregate) error {
	return m.Called(ctx, runID, aggs).Error(0)
}

type fixture struct {
	paths  *config.Paths
	census *mockCensus
	cfpb   *mockCFPB
	deps   Dependencies
	logs   *testutil.BufferedSlogHandler
}

func newFixture(t *testing.T, base string) *fixture {
	t.Helper()
	cfg := config.Default().Paths
	cfg.BaseDir = base
	paths, err := config.ResolvePaths(cfg)
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())

	logger, logs := testutil.NewTestLogger(t)
	manager := files.NewManager(paths, logger)
	census := &mockCensus{}
	cfpb := &mockCFPB{}

	return &fixture{
		paths:  paths,
		census: census,
		cfpb:   cfpb,
		logs:   logs,
		deps: Dependencies{
			Census:      census,
			CFPB:        cfpb,
			InputCache:  files.NewCache(manager, paths.InputCacheDir, nil, logger),
			OutputCache: files.NewCache(manager, paths.OutputCacheDir, nil, logger),
			CSVWriter:   exporter.NewCSVWriter(paths, logger),
			XLSXWriter:  exporter.NewXLSXWriter(paths, logger),
			Logger:      logger,
		},
	}
}

func (f *fixture) pipeline() *Pipeline {
	return NewPipeline(DefaultSteps(50000, f.deps), f.deps.Logger, nil, nil)
}

func sampleCensus() []byte {
	return testutil.CensusPayload(testutil.SampleCensusRows...)
}

func sampleLoans() []byte {
	return []byte(testutil.LoanCSV(testutil.SampleLoanRows...))
}

func TestDefaultStepsEndToEnd(t *testing.T) {
	f := newFixture(t, t.TempDir())
	f.census.On("FetchRegionIncome", mock.Anything).Return(sampleCensus(), nil).Once()
	f.cfpb.On("FetchLoans", mock.Anything, []string{"10180", "10500"}).Return(sampleLoans(), nil).Once()

	result, err := f.pipeline().Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.CSVLines, 3)
	assert.Equal(t, `"Abilene, TX Metro Area",10180,3,100,85,4,2500,300,135000,45000,70,2,1,0`, result.CSVLines[1])
	assert.Equal(t, `"Albany, GA Metro Area",10500,1,200,75,5,4000,360,250000,70000,0,0,0,1`, result.CSVLines[2])

	require.Len(t, result.Aggregates, 2)
	assert.Equal(t, "10180", result.Aggregates[0].RegionID)
	assert.Equal(t, "Abilene, TX Metro Area", result.Aggregates[0].RegionName)
	assert.Equal(t, 70.0, result.Aggregates[0].AvgMinorityPopulation)
	assert.Equal(t, []string{"White", "Black or African American", "Asian"}, result.RaceCategories)
	assert.Equal(t, 4, result.RecordCount)
	assert.Len(t, result.Regions, 2)

	for _, name := range []string{config.RegionIncomeFile, config.LoanDataFile} {
		assert.FileExists(t, filepath.Join(f.paths.InputCacheDir, name))
	}
	assert.FileExists(t, f.paths.OutputCachePath(config.NormalizedLoanFile))

	csvPath := f.paths.OutputCachePath(config.AggregateCSVFile)
	assert.Equal(t, csvPath, result.Artifacts["csv"])
	written, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, exporter.JoinLines(result.CSVLines), string(written))
	assert.FileExists(t, result.Artifacts["xlsx"])

	f.census.AssertExpectations(t)
	f.cfpb.AssertExpectations(t)
	testutil.AssertNoErrors(t, f.logs)
}

func TestDefaultStepsReuseCaches(t *testing.T) {
	base := t.TempDir()

	first := newFixture(t, base)
	first.census.On("FetchRegionIncome", mock.Anything).Return(sampleCensus(), nil).Once()
	first.cfpb.On("FetchLoans", mock.Anything, mock.Anything).Return(sampleLoans(), nil).Once()
	want, err := first.pipeline().Run(context.Background())
	require.NoError(t, err)

	t.Run("warm caches skip every fetch", func(t *testing.T) {
		second := newFixture(t, base)
		got, err := second.pipeline().Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want.CSVLines, got.CSVLines)
		second.census.AssertNotCalled(t, "FetchRegionIncome", mock.Anything)
		second.cfpb.AssertNotCalled(t, "FetchLoans", mock.Anything, mock.Anything)
	})

	t.Run("derived cache skips the raw export", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(base, "inputCache", config.LoanDataFile)))

		third := newFixture(t, base)
		p := third.pipeline()
		got, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want.CSVLines, got.CSVLines)
		third.cfpb.AssertNotCalled(t, "FetchLoans", mock.Anything, mock.Anything)
		assert.Equal(t, "derived_cache", p.Status().Run.Steps[2].Metadata["source"])
	})
}

func TestDefaultStepsNoRegionsSelected(t *testing.T) {
	f := newFixture(t, t.TempDir())
	payload := testutil.CensusPayload([3]string{"Akron, OH Metro Area", "60000", "10420"})
	f.census.On("FetchRegionIncome", mock.Anything).Return(payload, nil).Once()

	result, err := f.pipeline().Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, result.Aggregates)
	require.Len(t, result.CSVLines, 1)
	assert.True(t, strings.HasPrefix(result.CSVLines[0], "MSA Name,MSA ID,Number of Loans,"))
	f.cfpb.AssertNotCalled(t, "FetchLoans", mock.Anything, mock.Anything)
}

func TestDefaultStepsSourceFailure(t *testing.T) {
	f := newFixture(t, t.TempDir())
	f.census.On("FetchRegionIncome", mock.Anything).Return(nil, errors.New("503 from census")).Once()

	p := f.pipeline()
	result, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Nil(t, p.Result())
	assert.NoFileExists(t, filepath.Join(f.paths.InputCacheDir, config.RegionIncomeFile))

	steps := p.Status().Run.Steps
	assert.Equal(t, StepStatusFailed, steps[0].Status)
	for _, s := range steps[1:] {
		assert.Equal(t, StepStatusSkipped, s.Status, s.ID)
	}
}

type failingPutCache struct {
	*files.Cache
}

func (c failingPutCache) Put(ctx context.Context, name string, data []byte) error {
	return errors.New("disk full")
}

func TestDefaultStepsDerivedCacheWriteFailure(t *testing.T) {
	f := newFixture(t, t.TempDir())
	f.deps.OutputCache = failingPutCache{Cache: f.deps.OutputCache.(*files.Cache)}
	f.census.On("FetchRegionIncome", mock.Anything).Return(sampleCensus(), nil).Once()
	f.cfpb.On("FetchLoans", mock.Anything, []string{"10180", "10500"}).Return(sampleLoans(), nil).Once()

	result, err := f.pipeline().Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.CSVLines, 3)
	assert.NoFileExists(t, f.paths.OutputCachePath(config.NormalizedLoanFile))
}

func TestPersistStep(t *testing.T) {
	t.Run("nil sink skips", func(t *testing.T) {
		f := newFixture(t, t.TempDir())
		f.census.On("FetchRegionIncome", mock.Anything).Return(sampleCensus(), nil)
		f.cfpb.On("FetchLoans", mock.Anything, mock.Anything).Return(sampleLoans(), nil)

		p := f.pipeline()
		_, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StepStatusSkipped, p.Status().Run.Steps[6].Status)
	})

	t.Run("sink receives ordered aggregates", func(t *testing.T) {
		f := newFixture(t, t.TempDir())
		f.census.On("FetchRegionIncome", mock.Anything).Return(sampleCensus(), nil)
		f.cfpb.On("FetchLoans", mock.Anything, mock.Anything).Return(sampleLoans(), nil)

		sink := &mockSink{}
		sink.On("SaveAggregates", mock.Anything, mock.AnythingOfType("string"),
			mock.MatchedBy(func(aggs []*domain.RegionAggregate) bool {
				return len(aggs) == 2 && aggs[0].RegionID == "10180" && aggs[1].RegionID == "10500"
			})).Return(nil).Once()
		f.deps.Sink = sink

		p := f.pipeline()
		_, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StepStatusCompleted, p.Status().Run.Steps[6].Status)
		sink.AssertExpectations(t)
	})

	t.Run("sink failure does not block publication", func(t *testing.T) {
		f := newFixture(t, t.TempDir())
		f.census.On("FetchRegionIncome", mock.Anything).Return(sampleCensus(), nil)
		f.cfpb.On("FetchLoans", mock.Anything, mock.Anything).Return(sampleLoans(), nil)

		sink := &mockSink{}
		sink.On("SaveAggregates", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection reset"))
		f.deps.Sink = sink

		p := f.pipeline()
		result, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, result)
		assert.True(t, p.IsReady())
		assert.Equal(t, StepStatusFailed, p.Status().Run.Steps[6].Status)
		testutil.AssertLogContains(t, f.logs, slog.LevelWarn, "optional_step_failed")
	})
}

func TestStepsRequireInputs(t *testing.T) {
	state := NewOperationState("run", []Step{NewFilterRegionsStep(50000), NewRenderStep()})

	err := NewFilterRegionsStep(50000).Execute(context.Background(), state)
	assert.Equal(t, ErrorTypeInvalidState, GetErrorType(err))

	err = NewRenderStep().Execute(context.Background(), state)
	assert.Equal(t, ErrorTypeInvalidState, GetErrorType(err))
}

func TestOrderedAggregates(t *testing.T) {
	result := dataprocessing.Aggregate([]domain.LoanRecord{
		{RegionID: "10500"}, {RegionID: "9"}, {RegionID: "10180"},
	}, nil, nil)

	ordered := orderedAggregates(result)
	ids := make([]string, len(ordered))
	for i, a := range ordered {
		ids[i] = a.RegionID
	}
	assert.Equal(t, []string{"9", "10180", "10500"}, ids)
}
