package sink

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/pump-monitor/internal/flow"
)

func testResult(channel string, pulses uint64) flow.Result {
	start := time.Date(2026, 3, 14, 9, 30, 0, 0, time.Local)
	return flow.Result{
		Channel:     channel,
		Start:       start,
		End:         start.Add(3 * time.Second),
		ElapsedMs:   3000.12,
		Pulses:      pulses,
		Volume:      1,
		Rate:        19.999,
		TotalVolume: 4.5,
	}
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

func fixedDay(day int) func() time.Time {
	return func() time.Time { return time.Date(2026, 3, day, 12, 0, 0, 0, time.Local) }
}

func TestCSVStoreHeaderWrittenOnce(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVStore(dir, fixedDay(14))

	for i := 0; i < 100; i++ {
		require.NoError(t, s.Append(context.Background(), testResult("PUMP_1", uint64(i))))
	}

	rows := readCSV(t, filepath.Join(dir, "2026-03-14.csv"))
	require.Len(t, rows, 101)
	assert.Equal(t, Header, rows[0])

	headers := 0
	for _, row := range rows {
		assert.Len(t, row, len(Header))
		if row[0] == "pump" {
			headers++
		}
	}
	assert.Equal(t, 1, headers)
	assert.Equal(t, "99", rows[100][7])
}

func TestCSVStoreFieldOrder(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVStore(dir, fixedDay(14))

	r := testResult("PUMP_2", 537)
	require.NoError(t, s.Append(context.Background(), r))

	rows := readCSV(t, s.Path(fixedDay(14)()))
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		"PUMP_2",
		r.Start.Format(TimeLayout),
		r.End.Format(TimeLayout),
		"3000.12",
		"19.999",
		"1",
		"4.5",
		"537",
	}, rows[1])
}

func TestCSVStoreKeyedByDate(t *testing.T) {
	dir := t.TempDir()
	day := 14
	s := NewCSVStore(dir, func() time.Time { return fixedDay(day)() })

	require.NoError(t, s.Append(context.Background(), testResult("PUMP_1", 1)))
	day = 15
	require.NoError(t, s.Append(context.Background(), testResult("PUMP_1", 2)))
	require.NoError(t, s.Append(context.Background(), testResult("PUMP_1", 3)))

	assert.Len(t, readCSV(t, filepath.Join(dir, "2026-03-14.csv")), 2)
	rows := readCSV(t, filepath.Join(dir, "2026-03-15.csv"))
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
}

func TestCSVStoreEnsureDayIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s := NewCSVStore(dir, nil)
	day := fixedDay(14)()

	path, err := s.EnsureDay(day)
	require.NoError(t, err)
	_, err = s.EnsureDay(day)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(Header, ",")+"\n", string(data))
}

func TestCSVStoreHeaderAddedToEmptyFile(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVStore(dir, fixedDay(14))
	path := s.Path(fixedDay(14)())
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	require.NoError(t, s.Append(context.Background(), testResult("PUMP_1", 1)))

	rows := readCSV(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, Header, rows[0])
}

func TestCSVStoreAppendFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// data dir path is a regular file, so it cannot be created
	s := NewCSVStore(filepath.Join(blocker, "data"), fixedDay(14))
	assert.Error(t, s.Append(context.Background(), testResult("PUMP_1", 1)))
}

func TestCSVStoreName(t *testing.T) {
	assert.Equal(t, "csv", NewCSVStore(t.TempDir(), nil).Name())
}
