package report

import (
	"archive/zip"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/utils/config"
	"github.com/xuri/excelize/v2"
)

func sampleHistory(t *testing.T, n int) *History {
	t.Helper()
	h := NewHistory("run-1")
	sum := 0.
	for i := range n {
		q := (i * 7) % 11
		sum -= float64(q)
		require.NoError(t, h.Append(Record{Step: i, CumulativeReward: sum, TotalQueue: q}))
	}
	return h
}

func TestHistoryAppend(t *testing.T) {
	h := NewHistory("r")
	_, ok := h.Last()
	assert.False(t, ok)
	require.NoError(t, h.Append(Record{Step: 0}))
	require.NoError(t, h.Append(Record{Step: 1, CumulativeReward: -2, TotalQueue: 2}))
	assert.Error(t, h.Append(Record{Step: 1}))
	assert.Error(t, h.Append(Record{Step: 0}))
	assert.Equal(t, 2, h.Len())
	last, ok := h.Last()
	assert.True(t, ok)
	assert.Equal(t, Record{Step: 1, CumulativeReward: -2, TotalQueue: 2}, last)
}

// chartXML 读取xlsx中所有图表的XML
func chartXML(t *testing.T, path string) []string {
	t.Helper()
	z, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer z.Close()
	var charts []string
	for _, f := range z.File {
		if !strings.HasPrefix(f.Name, "xl/charts/chart") {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		charts = append(charts, string(b))
	}
	return charts
}

func TestWriteWorkbook(t *testing.T) {
	h := sampleHistory(t, 50)
	path := filepath.Join(t.TempDir(), "out", "history.xlsx")
	require.NoError(t, WriteWorkbook(path, h))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{historySheet}, f.GetSheetList())
	rows, err := f.GetRows(historySheet)
	require.NoError(t, err)
	require.Len(t, rows, 51)
	assert.Equal(t, []string{"step", "cumulative_reward", "total_queue"}, rows[0])
	assert.Equal(t, "49", rows[50][0])

	charts := chartXML(t, path)
	require.Len(t, charts, 2)
	all := strings.Join(charts, "")
	assert.Contains(t, all, RewardChartTitle)
	assert.Contains(t, all, QueueChartTitle)
	assert.Contains(t, all, "History!$B$2:$B$51")
	assert.Contains(t, all, "History!$C$2:$C$51")
}

func TestWriteWorkbookEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, WriteWorkbook(path, NewHistory("empty")))
	assert.Empty(t, chartXML(t, path))
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer s.Close()

	h := sampleHistory(t, 20)
	require.NoError(t, s.Save(h))
	got, err := s.Load(h.RunID)
	require.NoError(t, err)
	assert.Equal(t, h.Records, got.Records)
	assert.True(t, h.StartedAt.Equal(got.StartedAt))

	// 重复保存覆盖旧记录
	h2 := sampleHistory(t, 5)
	require.NoError(t, s.Save(h2))
	got, err = s.Load(h.RunID)
	require.NoError(t, err)
	assert.Len(t, got.Records, 5)

	_, err = s.Load("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestMongoDocuments(t *testing.T) {
	docs := documents(sampleHistory(t, 3))
	require.Len(t, docs, 3)
	d := docs[2].(historyDocument)
	assert.Equal(t, "run-1", d.RunID)
	assert.Equal(t, 2, d.Step)
}

func TestExport(t *testing.T) {
	dir := t.TempDir()
	h := sampleHistory(t, 10)
	c := config.Output{
		Workbook: filepath.Join(dir, "history.xlsx"),
		SQLite:   filepath.Join(dir, "history.db"),
	}
	require.NoError(t, Export(context.Background(), c, h))
	assert.FileExists(t, c.Workbook)

	s, err := NewSQLiteStore(c.SQLite)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load(h.RunID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Len())

	// 不可写的路径只影响对应输出
	c.Workbook = filepath.Join(c.Workbook, "not-a-dir", "x.xlsx")
	err = Export(context.Background(), c, h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workbook")
	assert.NotContains(t, err.Error(), "sqlite")

	assert.NoError(t, Export(context.Background(), config.Output{}, h))
}
