package recorder

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func readRecordFile(t *testing.T, dir string) [][]string {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, "autoscaler_log_*.csv"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	file, err := os.Open(matches[0])
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRecorder_FlushWritesCSV(t *testing.T) {
	dir := t.TempDir()

	r := New(dir)
	r.Record("web-frontend", 4, floatPtr(320.5), floatPtr(410.25))
	r.Record("api-backend", 2, floatPtr(80), nil)
	require.Equal(t, 2, r.Len())

	require.NoError(t, r.Flush())

	rows := readRecordFile(t, dir)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"timestamp", "target_id", "current_replicas", "current_load", "forecast"}, rows[0])

	assert.Equal(t, "web-frontend", rows[1][1])
	assert.Equal(t, "4", rows[1][2])
	assert.Equal(t, "320.50", rows[1][3])
	assert.Equal(t, "410.25", rows[1][4])

	// A cycle whose forecast was rejected leaves the column as N/A.
	assert.Equal(t, "N/A", rows[2][4])
}

func TestRecorder_FlushEmptyWritesHeaderOnly(t *testing.T) {
	dir := t.TempDir()

	r := New(dir)
	require.NoError(t, r.Flush())

	rows := readRecordFile(t, dir)
	require.Len(t, rows, 1)
}

func TestRecorder_FlushIsIdempotent(t *testing.T) {
	dir := t.TempDir()

	r := New(dir)
	r.Record("web-frontend", 4, nil, nil)

	require.NoError(t, r.Flush())
	require.NoError(t, r.Flush())

	matches, err := filepath.Glob(filepath.Join(dir, "autoscaler_log_*.csv"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
