package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/tsinghua-fib-lab/agentsociety-signal-rl/utils/config"
)

// Export 将训练历史写到所有已配置的输出
// 说明：某个输出失败不影响其他输出，错误合并后返回
func Export(ctx context.Context, c config.Output, h *History) error {
	var errs []error
	if c.Workbook != "" {
		if err := WriteWorkbook(c.Workbook, h); err != nil {
			errs = append(errs, fmt.Errorf("workbook: %w", err))
		}
	}
	if c.SQLite != "" {
		if err := saveSQLite(c.SQLite, h); err != nil {
			errs = append(errs, fmt.Errorf("sqlite: %w", err))
		}
	}
	if c.Mongo != nil {
		s := NewMongoStore(c.Mongo.URI, c.Mongo.DB, c.Mongo.Col)
		if err := s.Save(ctx, h); err != nil {
			errs = append(errs, fmt.Errorf("mongo: %w", err))
		}
		if err := s.Close(ctx); err != nil {
			log.Warnf("disconnect mongo: %v", err)
		}
	}
	return errors.Join(errs...)
}

func saveSQLite(path string, h *History) error {
	s, err := NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.Save(h)
}
