package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/APARENCE/binance-options-visualizer-25/internal/domain"
	"github.com/APARENCE/binance-options-visualizer-25/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.TradeRepository using SQLite. The default
// ":memory:" database keeps the trade log session-local: it dies with the
// process, which is exactly the lifetime the simulator wants.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection is mandatory for :memory: databases (each pool
	// connection would otherwise get its own empty database).
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	cfg.Logger.Info(context.Background(), "SQLite trade log opened", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		asset_class TEXT NOT NULL,
		direction TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL DEFAULT NULL,
		stake REAL NOT NULL,
		payout_percent REAL NOT NULL,
		opened_at TIMESTAMP NOT NULL,
		expiry_seconds INTEGER NOT NULL,
		status TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_opened_at ON trades (opened_at);
	CREATE INDEX IF NOT EXISTS idx_trades_status ON trades (status);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite trade log")
		return r.db.Close()
	}
	return nil
}

// Create appends a newly placed trade.
func (r *Repository) Create(ctx context.Context, t *domain.Trade) error {
	const query = `
	INSERT INTO trades (id, symbol, asset_class, direction, entry_price, stake,
	                    payout_percent, opened_at, expiry_seconds, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Symbol, t.Class, t.Direction, t.EntryPrice, t.Stake,
		t.PayoutPercent, t.OpenedAt, int64(t.Expiry/time.Second), t.Status)
	if err != nil {
		return fmt.Errorf("failed to insert trade %s: %w", t.ID, err)
	}
	r.logger.Debug(ctx, "Trade recorded", map[string]interface{}{"tradeID": t.ID, "symbol": t.Symbol})
	return nil
}

// Resolve applies the terminal status to an active trade. The WHERE clause
// on status makes a repeated resolution a no-op at the storage level too.
func (r *Repository) Resolve(ctx context.Context, id string, status domain.TradeStatus, exitPrice float64) error {
	const query = `UPDATE trades SET status = ?, exit_price = ? WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, query, status, exitPrice, id, domain.StatusActive)
	if err != nil {
		return fmt.Errorf("failed to resolve trade %s: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for trade %s: %w", id, err)
	}
	if rowsAffected == 0 {
		var exists int
		if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades WHERE id = ?`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check trade %s: %w", id, err)
		}
		if exists == 0 {
			return fmt.Errorf("trade %s: %w", id, ports.ErrNotFound)
		}
		return fmt.Errorf("trade %s: %w", id, ports.ErrTradeFinal)
	}
	r.logger.Debug(ctx, "Trade resolved", map[string]interface{}{"tradeID": id, "status": status})
	return nil
}

// Recent returns the most recent trades, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]*domain.Trade, error) {
	const query = `
	SELECT id, symbol, asset_class, direction, entry_price, COALESCE(exit_price, 0),
	       stake, payout_percent, opened_at, expiry_seconds, status
	FROM trades
	ORDER BY opened_at DESC, rowid DESC
	LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: recent trades: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0, limit)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade during Recent: %w", err)
		}
		trades = append(trades, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// Stats aggregates win/loss counts over the whole session.
func (r *Repository) Stats(ctx context.Context) (domain.Stats, error) {
	const query = `
	SELECT COUNT(*),
	       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
	       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
	FROM trades`

	var st domain.Stats
	err := r.db.QueryRowContext(ctx, query, domain.StatusWon, domain.StatusLost).
		Scan(&st.Total, &st.Won, &st.Lost)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("%w: trade stats: %w", ports.ErrQueryFailed, err)
	}
	st.Active = st.Total - st.Won - st.Lost
	if st.Total > 0 {
		st.WinRate = float64(st.Won) / float64(st.Total) * 100
	}
	return st, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var class, direction, status string
	var expirySeconds int64
	err := s.Scan(
		&t.ID, &t.Symbol, &class, &direction, &t.EntryPrice, &t.ExitPrice,
		&t.Stake, &t.PayoutPercent, &t.OpenedAt, &expirySeconds, &status)
	if err != nil {
		return nil, err
	}
	t.Class = domain.AssetClass(class)
	t.Direction = domain.Direction(direction)
	t.Expiry = time.Duration(expirySeconds) * time.Second
	t.Status = domain.TradeStatus(status)
	return t, nil
}
