package backtest

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/logger"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
	"github.com/DGU-Capstone-Team5-Quant/backend/pkg/errors"
)

// State persists the run's audit trail. The in-memory trade list is the
// source of truth; the DuckDB mirror and the parquet/yaml artifacts are
// best-effort conveniences for offline analysis. A persistence failure is
// logged and never discards computed history.
type State struct {
	db     *sql.DB
	sq     squirrel.StatementBuilderType
	log    *logger.Logger
	runID  string
	trades []types.TradeRecord
}

// NewState opens an in-memory DuckDB mirror and assigns the run its ID.
func NewState(log *logger.Logger) (*State, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to open database", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to connect to database", err)
	}

	s := &State{
		db:    db,
		sq:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		log:   log,
		runID: uuid.NewString(),
	}

	if err := s.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return s, nil
}

func (s *State) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			ts TIMESTAMP,
			action TEXT,
			price DOUBLE,
			trade_shares DOUBLE,
			position_shares DOUBLE,
			cash DOUBLE,
			equity DOUBLE,
			fee DOUBLE,
			pnl DOUBLE,
			cumulative_pnl DOUBLE,
			memories_used INTEGER
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeBacktestInitFailed, "failed to create trades table", err)
	}

	return nil
}

// RunID identifies this run in artifacts and logs.
func (s *State) RunID() string {
	return s.runID
}

// Record appends a trade to the audit trail and mirrors it into DuckDB.
func (s *State) Record(trade types.TradeRecord) {
	s.trades = append(s.trades, trade)

	_, err := s.sq.
		Insert("trades").
		Columns(
			"ts", "action", "price", "trade_shares", "position_shares",
			"cash", "equity", "fee", "pnl", "cumulative_pnl", "memories_used",
		).
		Values(
			trade.Ts, trade.Action, trade.Price, trade.TradeShares, trade.PositionShares,
			trade.Cash, trade.Equity, trade.Fee, trade.PnL, trade.CumulativePnL, trade.MemoriesUsed,
		).
		RunWith(s.db).
		Exec()
	if err != nil {
		s.log.Warn("Failed to mirror trade into duckdb",
			zap.Time("ts", trade.Ts),
			zap.Error(err),
		)
	}
}

// Trades returns the full audit trail in order.
func (s *State) Trades() []types.TradeRecord {
	return s.trades
}

// WriteArtifact persists the run: trades as parquet via DuckDB's COPY, the
// summary and configuration as YAML. The caller already holds the in-memory
// results, so any failure here is reported but recoverable.
func (s *State) WriteArtifact(dir string, summary types.RunSummary) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(errors.ErrCodeArtifactWriteFailed, err, "failed to create artifact dir %s", dir)
	}

	tradesPath := filepath.Join(dir, "trades.parquet")

	_, err := s.db.Exec(fmt.Sprintf(`COPY trades TO '%s' (FORMAT PARQUET)`, tradesPath))
	if err != nil {
		return errors.Wrap(errors.ErrCodeArtifactWriteFailed, "failed to export trades parquet", err)
	}

	summaryPath := filepath.Join(dir, "summary.yaml")
	if err := types.WriteRunSummary(summaryPath, summary); err != nil {
		return errors.Wrap(errors.ErrCodeArtifactWriteFailed, "failed to write run summary", err)
	}

	s.log.Info("Wrote run artifact",
		zap.String("run_id", s.runID),
		zap.String("dir", dir),
		zap.Int("trades", len(s.trades)),
	)

	return nil
}

// Close releases the DuckDB mirror.
func (s *State) Close() error {
	return s.db.Close()
}
