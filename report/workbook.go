package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	historySheet = "History"

	RewardChartTitle = "DQN Training: Cumulative Reward"
	QueueChartTitle  = "DQN Training: Queue Length"
)

// WriteWorkbook 将训练历史写入xlsx文件
// 功能：History表依次为step、cumulative_reward、total_queue三列，
// 右侧放置累计回报与排队长度两张折线图（历史为空时不画图）
// 参数：path-文件路径（目录不存在时自动创建），h-训练历史
func WriteWorkbook(path string, h *History) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return err
	}
	header := []string{"step", "cumulative_reward", "total_queue"}
	if err := f.SetSheetRow(historySheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range h.Records {
		row := []any{r.Step, r.CumulativeReward, r.TotalQueue}
		if err := f.SetSheetRow(historySheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	if h.Len() > 0 {
		last := h.Len() + 1
		charts := []struct {
			cell, column, title, yTitle string
		}{
			{"E2", "B", RewardChartTitle, "Cumulative Reward"},
			{"E22", "C", QueueChartTitle, "Total Queue"},
		}
		for _, c := range charts {
			if err := f.AddChart(historySheet, c.cell, lineChart(c.column, last, c.title, c.yTitle)); err != nil {
				return fmt.Errorf("add chart %q: %w", c.title, err)
			}
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	if err := f.SaveAs(path); err != nil {
		return err
	}
	log.Infof("history of %d steps written to %s", h.Len(), path)
	return nil
}

// lineChart 以step列为横轴、column列为纵轴的折线图
func lineChart(column string, lastRow int, title, yTitle string) *excelize.Chart {
	return &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$%s$1", historySheet, column),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", historySheet, lastRow),
			Values:     fmt.Sprintf("%s!$%s$2:$%s$%d", historySheet, column, column, lastRow),
		}},
		Title:     []excelize.RichTextRun{{Text: title}},
		Legend:    excelize.ChartLegend{Position: "none"},
		XAxis:     excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "Training Step"}}},
		YAxis:     excelize.ChartAxis{MajorGridLines: true, Title: []excelize.RichTextRun{{Text: yTitle}}},
		Dimension: excelize.ChartDimension{Width: 720, Height: 360},
	}
}
