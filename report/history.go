// 训练历史：每一步的累计回报与排队总数，训练结束后导出到xlsx、sqlite与MongoDB
package report

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "report")

// Record 一步的训练记录
type Record struct {
	Step             int     `bson:"step"`
	CumulativeReward float64 `bson:"cumulative_reward"`
	TotalQueue       int     `bson:"total_queue"`
}

// History 一次训练的全部记录，Step严格递增
type History struct {
	RunID     string
	StartedAt time.Time
	Records   []Record
}

func NewHistory(runID string) *History {
	return &History{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
	}
}

// Append 追加一条记录，Step必须大于上一条
func (h *History) Append(r Record) error {
	if last, ok := h.Last(); ok && r.Step <= last.Step {
		return fmt.Errorf("report: step %d after step %d", r.Step, last.Step)
	}
	h.Records = append(h.Records, r)
	return nil
}

func (h *History) Len() int {
	return len(h.Records)
}

// Last 最后一条记录，为空时ok为false
func (h *History) Last() (r Record, ok bool) {
	if len(h.Records) == 0 {
		return Record{}, false
	}
	return h.Records[len(h.Records)-1], true
}
