// Package feedback schedules outcome checks for past trading decisions and
// sweeps them in the background: once a check comes due, the decision price is
// compared with the later market price and the realized outcome is written to
// long-term memory as a feedback entry.
package feedback

import (
	"context"
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/logger"
	"github.com/DGU-Capstone-Team5-Quant/backend/pkg/errors"
)

// Check is one scheduled outcome verification.
type Check struct {
	ID            string
	Ticker        string
	Action        string
	DecisionPrice float64
	DecidedAt     time.Time
	CheckAt       time.Time
}

// Store holds pending checks. Implementations must be safe for use from the
// sweeper goroutine alongside schedulers.
type Store interface {
	Schedule(ctx context.Context, check Check) (string, error)
	Due(ctx context.Context, now time.Time, limit int) ([]Check, error)
	Complete(ctx context.Context, ids []string) error
	Close() error
}

// DuckStore is a DuckDB-backed Store.
type DuckStore struct {
	db  *sql.DB
	sq  squirrel.StatementBuilderType
	log *logger.Logger
}

// NewDuckStore opens the schedule database at path; ":memory:" works for
// tests and single-process runs.
func NewDuckStore(path string, log *logger.Logger) (*DuckStore, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to open feedback database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to connect to feedback database", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS feedback_checks (
			id TEXT PRIMARY KEY,
			ticker TEXT,
			action TEXT,
			decision_price DOUBLE,
			decided_at TIMESTAMP,
			check_at TIMESTAMP,
			completed BOOLEAN DEFAULT FALSE
		)
	`)
	if err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeStoreFailed, "failed to create feedback table", err)
	}

	return &DuckStore{
		db:  db,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		log: log,
	}, nil
}

// Schedule implements Store.
func (s *DuckStore) Schedule(ctx context.Context, check Check) (string, error) {
	if check.ID == "" {
		check.ID = uuid.NewString()
	}

	_, err := s.sq.
		Insert("feedback_checks").
		Columns("id", "ticker", "action", "decision_price", "decided_at", "check_at", "completed").
		Values(check.ID, check.Ticker, check.Action, check.DecisionPrice, check.DecidedAt, check.CheckAt, false).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeStoreFailed, "failed to schedule feedback check", err)
	}

	return check.ID, nil
}

// Due implements Store.
func (s *DuckStore) Due(ctx context.Context, now time.Time, limit int) ([]Check, error) {
	rows, err := s.sq.
		Select("id", "ticker", "action", "decision_price", "decided_at", "check_at").
		From("feedback_checks").
		Where(squirrel.And{
			squirrel.Eq{"completed": false},
			squirrel.LtOrEq{"check_at": now},
		}).
		OrderBy("check_at ASC").
		Limit(uint64(limit)).
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query due checks", err)
	}
	defer rows.Close()

	var checks []Check

	for rows.Next() {
		var c Check
		if err := rows.Scan(&c.ID, &c.Ticker, &c.Action, &c.DecisionPrice, &c.DecidedAt, &c.CheckAt); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan check row", err)
		}

		checks = append(checks, c)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to read due checks", err)
	}

	return checks, nil
}

// Complete implements Store.
func (s *DuckStore) Complete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := s.sq.
		Update("feedback_checks").
		Set("completed", true).
		Where(squirrel.Eq{"id": ids}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreFailed, "failed to complete checks", err)
	}

	return nil
}

// Close implements Store.
func (s *DuckStore) Close() error {
	return s.db.Close()
}
