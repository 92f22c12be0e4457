// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// Integration test for the full totaling stack
//
// This test drives a complete run with every subsystem wired the way the
// CLI wires them: file-backed structured logs, a tiered chunk cache over
// the on-disk spill store, and a collecting diagnostic sink. Everything
// runs against local temp directories; no external services are needed.

package integration

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tidewater/pkg/logging"
	"github.com/AleutianAI/tidewater/services/totaling"
	"github.com/AleutianAI/tidewater/services/totaling/dataset"
	"github.com/AleutianAI/tidewater/services/totaling/spill"
	"github.com/AleutianAI/tidewater/services/totaling/twdfile"
)

// writeComponent persists one per-component projection file over two
// locations, with lat and lon in coordinate role as upstream modules
// write them.
func writeComponent(t *testing.T, path string, years []int64, values []float64) {
	t.Helper()
	locs := []int64{0, 1}
	require.Len(t, values, len(years)*len(locs))

	ds := dataset.New()
	require.NoError(t, ds.AddDim(totaling.DimYears, len(years)))
	require.NoError(t, ds.AddDim(totaling.DimLocations, len(locs)))

	yearBuf, err := dataset.NewInts([]int{len(years)}, years)
	require.NoError(t, err)
	yearVar, err := dataset.NewVariable([]string{totaling.DimYears}, yearBuf, nil)
	require.NoError(t, err)
	require.NoError(t, ds.SetCoord(totaling.DimYears, yearVar))

	locBuf, err := dataset.NewInts([]int{len(locs)}, locs)
	require.NoError(t, err)
	locVar, err := dataset.NewVariable([]string{totaling.DimLocations}, locBuf, nil)
	require.NoError(t, err)
	require.NoError(t, ds.SetCoord(totaling.DimLocations, locVar))

	latBuf, err := dataset.NewFloats([]int{len(locs)}, []float64{10, 11})
	require.NoError(t, err)
	latVar, err := dataset.NewVariable([]string{totaling.DimLocations}, latBuf,
		map[string]string{"units": "degrees_north"})
	require.NoError(t, err)
	require.NoError(t, ds.SetCoord(totaling.VarLat, latVar))

	lonBuf, err := dataset.NewFloats([]int{len(locs)}, []float64{100, 101})
	require.NoError(t, err)
	lonVar, err := dataset.NewVariable([]string{totaling.DimLocations}, lonBuf,
		map[string]string{"units": "degrees_east"})
	require.NoError(t, err)
	require.NoError(t, ds.SetCoord(totaling.VarLon, lonVar))

	valBuf, err := dataset.NewFloats([]int{len(years), len(locs)}, values)
	require.NoError(t, err)
	valVar, err := dataset.NewVariable([]string{totaling.DimYears, totaling.DimLocations}, valBuf,
		map[string]string{"units": "mm"})
	require.NoError(t, err)
	require.NoError(t, ds.SetVar(totaling.DefaultTargetVariable, valVar))

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, twdfile.Write(context.Background(), path, ds, twdfile.WriteOptions{}))
}

func writeScenario(t *testing.T, dir string) []string {
	t.Helper()
	years := []int64{2020, 2030, 2040}
	inputs := []string{
		filepath.Join(dir, "components", "icesheets", "AIS.twd"),
		filepath.Join(dir, "components", "glaciers", "glaciers.twd"),
		filepath.Join(dir, "components", "oceandyn", "sterodynamics.twd"),
	}
	writeComponent(t, inputs[0], years, []float64{1, 2, 3, 4, 5, 6})
	writeComponent(t, inputs[1], years, []float64{10, 20, 30, 40, 50, 60})
	writeComponent(t, inputs[2], years, []float64{100, 200, 300, 400, 500, 600})
	return inputs
}

// readTotals opens a totaled output and extracts the target variable.
func readTotals(t *testing.T, path string) []float64 {
	t.Helper()
	fl, err := twdfile.Open(path)
	require.NoError(t, err)
	defer fl.Close()

	ds, err := fl.Dataset()
	require.NoError(t, err)
	v, ok := ds.Var(totaling.DefaultTargetVariable)
	require.True(t, ok, "output must carry the totaled variable")

	buf, err := v.Materialize(context.Background())
	require.NoError(t, err)
	out := make([]float64, buf.Len())
	for i := range out {
		require.False(t, buf.IsMissing(i), "unexpected missing cell at %d", i)
		out[i] = buf.Float(i)
	}
	return out
}

// TestTotalingRunFullStack wires the pipeline the way the CLI does and
// verifies the run end to end.
func TestTotalingRunFullStack(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	inputs := writeScenario(t, dir)
	out := filepath.Join(dir, "out", "total.twd")
	logDir := filepath.Join(dir, "logs")
	spillDir := filepath.Join(dir, "spill")

	logger := logging.New(logging.Config{
		Level:   logging.LevelDebug,
		LogDir:  logDir,
		Service: "tidewater",
		Quiet:   true,
	})

	store, err := spill.OpenWithPath(spillDir)
	require.NoError(t, err)
	cache := dataset.NewTieredCache(dataset.NewLRUCache(1<<20), store)
	collector := &totaling.CollectorSink{}

	wf, err := totaling.New(totaling.Config{
		Name:       "coupled.ssp585",
		Items:      inputs,
		Params:     totaling.Params{PyearStart: 2020, PyearEnd: 2040, PyearStep: 10},
		OutputPath: out,
	},
		totaling.WithLogger(logger.Slog()),
		totaling.WithSink(collector),
		totaling.WithCache(cache),
	)
	require.NoError(t, err)

	report, err := wf.Run(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, logger.Close())

	t.Run("report", func(t *testing.T) {
		assert.Equal(t, "coupled.ssp585", report.Name)
		assert.Len(t, report.Files, 3)
		assert.Empty(t, report.Diagnostics)
		assert.Equal(t, 0, collector.Count(), "conforming inputs must report nothing")
		assert.Equal(t, 6, report.Cells)
	})

	t.Run("totaled values", func(t *testing.T) {
		assert.Equal(t, []float64{111, 222, 333, 444, 555, 666}, readTotals(t, out))
	})

	t.Run("structured log file", func(t *testing.T) {
		entries, err := filepath.Glob(filepath.Join(logDir, "tidewater_*.log"))
		require.NoError(t, err)
		require.Len(t, entries, 1, "expected one dated log file")

		data, err := os.ReadFile(entries[0])
		require.NoError(t, err)
		content := string(data)
		assert.Contains(t, content, `"msg":"totaling started"`)
		assert.Contains(t, content, `"msg":"totaling complete"`)
		assert.Contains(t, content, `"workflow":"coupled.ssp585"`)
	})

	t.Run("chunks spilled to disk", func(t *testing.T) {
		names, err := os.ReadDir(spillDir)
		require.NoError(t, err)
		assert.NotEmpty(t, names, "the spill store must persist chunks")
	})
}

// TestTotalingRunGlobDiscovery totals through a glob pattern and checks
// that expansion order drives provenance order.
func TestTotalingRunGlobDiscovery(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeScenario(t, dir)
	out := filepath.Join(dir, "out", "total.twd")

	wf, err := totaling.New(totaling.Config{
		Name:       "coupled",
		Items:      []string{filepath.Join(dir, "components", "*", "*.twd")},
		Params:     totaling.Params{PyearStart: 2020, PyearEnd: 2040, PyearStep: 10},
		OutputPath: out,
	})
	require.NoError(t, err)

	report, err := wf.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Files, 3)

	// Glob matches expand sorted, so glaciers comes first.
	assert.Equal(t, "glaciers/glaciers", report.Files[0].Tag)
	assert.Equal(t, "icesheets/AIS", report.Files[1].Tag)
	assert.Equal(t, "oceandyn/sterodynamics", report.Files[2].Tag)
	assert.Equal(t, []float64{111, 222, 333, 444, 555, 666}, readTotals(t, out))
}

// TestTotalingRunsAreReproducibleAcrossCaches checks byte-level
// idempotence when one run shares a cache and the other runs cold.
func TestTotalingRunsAreReproducibleAcrossCaches(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	inputs := writeScenario(t, dir)

	runTo := func(t *testing.T, out string, opts ...totaling.Option) []byte {
		t.Helper()
		wf, err := totaling.New(totaling.Config{
			Name:       "coupled",
			Items:      inputs,
			Params:     totaling.Params{PyearStart: 2020, PyearEnd: 2040, PyearStep: 10},
			OutputPath: out,
		}, opts...)
		require.NoError(t, err)
		_, err = wf.Run(ctx)
		require.NoError(t, err)
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		return data
	}

	store, err := spill.OpenWithPath(filepath.Join(dir, "spill"))
	require.NoError(t, err)
	defer store.Close()

	warm := runTo(t, filepath.Join(dir, "out", "warm.twd"),
		totaling.WithCache(dataset.NewTieredCache(dataset.NewLRUCache(1<<20), store)))
	cold := runTo(t, filepath.Join(dir, "out", "cold.twd"))

	assert.Equal(t, cold, warm, "caching must not change output bytes")
}

// TestTotalingAbortLeavesNoPartialOutput checks the all-or-nothing write
// across the whole stack.
func TestTotalingAbortLeavesNoPartialOutput(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	good := filepath.Join(dir, "components", "glaciers", "glaciers.twd")
	bad := filepath.Join(dir, "components", "oceandyn", "sterodynamics.twd")
	writeComponent(t, good, []int64{2020, 2030, 2040}, []float64{1, 2, 3, 4, 5, 6})
	writeComponent(t, bad, []int64{2020, 2025, 2040}, []float64{10, 20, 30, 40, 50, 60})
	outDir := filepath.Join(dir, "out")
	out := filepath.Join(outDir, "total.twd")

	wf, err := totaling.New(totaling.Config{
		Name:       "coupled",
		Items:      []string{good, bad},
		Params:     totaling.Params{PyearStart: 2020, PyearEnd: 2040, PyearStep: 10},
		OutputPath: out,
	})
	require.NoError(t, err)

	_, err = wf.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, totaling.ErrNonUniformStep)

	// Neither the output nor a stray temp file may exist.
	if entries, readErr := os.ReadDir(outDir); readErr == nil {
		for _, e := range entries {
			if !strings.HasPrefix(e.Name(), ".") {
				t.Errorf("aborted run left %s behind", e.Name())
			}
		}
	}
}
