package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/sst-heatwave-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := rootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestGenmockValidateDetect(t *testing.T) {
	dir := t.TempDir()
	baseline := filepath.Join(dir, "baseline.csv")
	archive := filepath.Join(dir, "archive.csv")

	_, err := execute(t, "genmock", "--baseline-out", baseline, "--archive-out", archive, "--year", "2024")
	require.NoError(t, err)

	out, err := execute(t, "validate", "--archive", archive, "--baseline", baseline)
	require.NoError(t, err, out)
	assert.Contains(t, out, "All validations passed.")
	assert.Contains(t, out, "366 archive dates, 365 baseline days")

	out, err = execute(t, "detect", "--archive", archive, "--baseline", baseline,
		"--location", "sanur", "--start", "2024-01-01", "--end", "2024-12-31", "--format", "json")
	require.NoError(t, err)

	var report detectReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 366, report.Observed)
	require.Len(t, report.Detection.Events, 1)
	ev := report.Detection.Events[0]
	assert.Equal(t, "2024-03-01", ev.Start)
	assert.Equal(t, "2024-03-07", ev.End)
	assert.Equal(t, 7, ev.Duration)
	assert.Equal(t, domain.CategoryStrong, ev.Category)
	assert.Len(t, report.Detection.PerDay, 7)

	out, err = execute(t, "detect", "--archive", archive, "--baseline", baseline,
		"--location", "jimbaran", "--start", "2024-01-01", "--end", "2024-12-31")
	require.NoError(t, err)
	assert.Contains(t, out, "jimbaran 2024-01-01..2024-12-31: 366 observed days, 0 heatwaves")
}

func TestValidate_ReportsProblems(t *testing.T) {
	dir := t.TempDir()
	archive := writeFile(t, dir, "archive.csv",
		"date,jimbaran,nusadua,sanur\n2024-03-01,28.1,,45\nnot-a-date,1,2,3\n")
	baseline := writeFile(t, dir, "baseline.csv",
		"Day of Year,climatology_mean,percentile_90\n1,28,28.7\n61,28,27.5\n366,28,28.7\n")

	out, err := execute(t, "validate", "--archive", archive, "--baseline", baseline)
	require.Error(t, err)
	assert.Contains(t, out, "Validation FAILED.")
	assert.Contains(t, out, "1 rows have an unreadable date")
	assert.Contains(t, out, "2024-03-01 sanur: 45.00")
	assert.Contains(t, out, "site nusadua has no readings")
	assert.Contains(t, out, "day 366 row present")
	assert.Contains(t, out, "day 61 sanur: p90 27.50 is not above clim 28.00")
	assert.Contains(t, out, "day 2 jimbaran: no baseline")
	// 1 March 2024 is row 60, which is absent.
	assert.Contains(t, out, "site jimbaran: 1 readings have no p90 threshold")
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "first.csv", "date,sanur,jimbaran\n2025-01-02,29.5,28\n01/01/2025,29,\n")
	second := writeFile(t, dir, "second.tsv", "Date\tSanur\tNusa Dua\n2025-01-02\t30,25\t27.5\n2025-01-01\t\t\n")

	out, err := execute(t, "merge", "--archive", filepath.Join(dir, "missing.csv"), "--out", "-", first, second)
	require.NoError(t, err)
	assert.Equal(t,
		"date,jimbaran,nusadua,sanur\n2025-01-01,,,29\n2025-01-02,28,27.5,30.25\n",
		out)
}

func TestMerge_WritesArchiveInPlace(t *testing.T) {
	dir := t.TempDir()
	archive := writeFile(t, dir, "archive.csv", "date,jimbaran,nusadua,sanur\n2025-01-01,28,,\n")
	input := writeFile(t, dir, "input.csv", "date,sanur\n2025-01-01,29.1\n")

	_, err := execute(t, "merge", "--archive", archive, input)
	require.NoError(t, err)

	data, err := os.ReadFile(archive)
	require.NoError(t, err)
	assert.Equal(t, "date,jimbaran,nusadua,sanur\n2025-01-01,28,,29.1\n", string(data))
}

func TestMerge_KeepsUnconfiguredColumns(t *testing.T) {
	dir := t.TempDir()
	archive := writeFile(t, dir, "archive.csv", "date,jimbaran,nusadua,sanur,kuta\n2025-01-01,28,,,30.5\n")
	input := writeFile(t, dir, "input.csv", "date,sanur\n2025-01-01,29.1\n")

	_, err := execute(t, "merge", "--archive", archive, input)
	require.NoError(t, err)

	data, err := os.ReadFile(archive)
	require.NoError(t, err)
	assert.Equal(t, "date,jimbaran,nusadua,sanur,kuta\n2025-01-01,28,,29.1,30.5\n", string(data))
}

func TestBaselineCommand(t *testing.T) {
	dir := t.TempDir()
	baseline := writeFile(t, dir, "baseline.csv",
		"Day of Year,sanur_clim,sanur_p90\n59,28.1,28.9\n60,28.2,29\n")

	out, err := execute(t, "baseline", "--baseline", baseline, "--location", "sanur", "29/02/2024")
	require.NoError(t, err)

	var got baselineReport
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "2024-02-29", got.Date)
	assert.Equal(t, 59, got.DayOfYear)
	require.NotNil(t, got.Baseline.P90)
	assert.InDelta(t, 28.9, *got.Baseline.P90, 1e-9)

	_, err = execute(t, "baseline", "--baseline", baseline, "--location", "kuta", "2024-03-01")
	require.Error(t, err)
}

func TestDetect_RejectsUnknownFormat(t *testing.T) {
	_, err := execute(t, "detect", "--location", "sanur", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}
