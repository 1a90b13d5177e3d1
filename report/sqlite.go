package report

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id      TEXT PRIMARY KEY,
    started_at  TEXT NOT NULL,
    steps       INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS history (
    run_id             TEXT NOT NULL,
    step               INTEGER NOT NULL,
    cumulative_reward  REAL NOT NULL,
    total_queue        INTEGER NOT NULL,
    PRIMARY KEY (run_id, step)
);
`

// ErrRunNotFound 数据库中没有该次训练
var ErrRunNotFound = errors.New("report: run not found")

// SQLiteStore 训练历史的sqlite存储
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore 打开（或创建）数据库并建表
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save 在一个事务中写入训练历史，同一RunID的旧记录被覆盖
func (s *SQLiteStore) Save(h *History) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	if _, err = tx.Exec(
		`INSERT OR REPLACE INTO runs (run_id, started_at, steps) VALUES (?, ?, ?)`,
		h.RunID, h.StartedAt.UTC().Format(time.RFC3339Nano), h.Len(),
	); err != nil {
		return err
	}
	if _, err = tx.Exec(`DELETE FROM history WHERE run_id = ?`, h.RunID); err != nil {
		return err
	}
	stmt, err := tx.Prepare(
		`INSERT INTO history (run_id, step, cumulative_reward, total_queue) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range h.Records {
		if _, err = stmt.Exec(h.RunID, r.Step, r.CumulativeReward, r.TotalQueue); err != nil {
			return fmt.Errorf("insert step %d: %w", r.Step, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	log.Infof("history of run %s saved to sqlite", h.RunID)
	return nil
}

// Load 读取一次训练的历史，按step升序
func (s *SQLiteStore) Load(runID string) (*History, error) {
	h := &History{RunID: runID}
	var startedAt string
	err := s.db.QueryRow(`SELECT started_at FROM runs WHERE run_id = ?`, runID).Scan(&startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	if h.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	rows, err := s.db.Query(
		`SELECT step, cumulative_reward, total_queue FROM history WHERE run_id = ? ORDER BY step`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Step, &r.CumulativeReward, &r.TotalQueue); err != nil {
			return nil, err
		}
		h.Records = append(h.Records, r)
	}
	return h, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
