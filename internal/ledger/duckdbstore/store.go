// Package duckdbstore persists ledger facts in DuckDB. It is a thin
// repository: staging happens inside a transaction that is committed on
// Flush, so a batch either becomes durable as a whole or not at all.
package duckdbstore

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/atlas-trading/internal/logger"
	"github.com/rxtech-lab/atlas-trading/internal/types"
	"github.com/rxtech-lab/atlas-trading/pkg/errors"
	"github.com/shopspring/decimal"
)

// Store implements ledger.Store on DuckDB.
type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	tx  *sql.Tx
	sq  squirrel.StatementBuilderType
	log *logger.Logger
}

// NewStore opens (or creates) a DuckDB database at path and creates the fact
// tables. Pass ":memory:" for an ephemeral store in tests.
func NewStore(path string, log *logger.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to open database", err)
	}

	store := &Store{
		db:  db,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		log: log,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) initialize() error {
	// Timestamps are stored as epoch nanoseconds: DuckDB TIMESTAMP has
	// microsecond precision and would silently truncate the index.
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS balance_updates (
			id TEXT PRIMARY KEY,
			ts_ns BIGINT,
			seq UBIGINT,
			event_time TIMESTAMP,
			venue_id TEXT,
			account_type TEXT,
			asset TEXT,
			quantity_change TEXT,
			quantity TEXT,
			simulated BOOLEAN
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to create balance_updates table", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS position_updates (
			id TEXT PRIMARY KEY,
			ts_ns BIGINT,
			seq UBIGINT,
			event_time TIMESTAMP,
			symbol TEXT,
			quantity_change TEXT,
			quantity TEXT,
			avg_entry_price TEXT,
			realized_pnl_delta TEXT,
			simulated BOOLEAN
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreInitFailed, "failed to create position_updates table", err)
	}

	return nil
}

func (s *Store) stagingTx() (*sql.Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePersistenceAppend, "failed to begin staging transaction", err)
	}

	s.tx = tx

	return tx, nil
}

// discardStaging rolls back the staging transaction so the caller can
// re-append the whole batch without duplicating rows. Callers hold s.mu.
func (s *Store) discardStaging() {
	if s.tx == nil {
		return
	}

	_ = s.tx.Rollback()
	s.tx = nil
}

// AppendBalances stages balance facts inside the current batch transaction.
func (s *Store) AppendBalances(ctx context.Context, facts []types.BalanceUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.stagingTx()
	if err != nil {
		return err
	}

	for _, fact := range facts {
		query, args, err := s.sq.
			Insert("balance_updates").
			Columns("id", "ts_ns", "seq", "event_time", "venue_id", "account_type",
				"asset", "quantity_change", "quantity", "simulated").
			Values(fact.ID, fact.Index.Timestamp.UnixNano(), fact.Index.Sequence,
				fact.EventTime, fact.VenueID, string(fact.AccountType),
				fact.Asset, fact.QuantityChange.String(), fact.Quantity.String(),
				fact.Simulated).
			ToSql()
		if err != nil {
			return errors.Wrap(errors.ErrCodePersistenceAppend, "failed to build balance insert", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			s.discardStaging()
			return errors.Wrapf(errors.ErrCodePersistenceAppend, err,
				"failed to append balance fact %s", fact.ID)
		}
	}

	return nil
}

// AppendPositions stages position facts inside the current batch transaction.
func (s *Store) AppendPositions(ctx context.Context, facts []types.PositionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.stagingTx()
	if err != nil {
		return err
	}

	for _, fact := range facts {
		query, args, err := s.sq.
			Insert("position_updates").
			Columns("id", "ts_ns", "seq", "event_time", "symbol", "quantity_change",
				"quantity", "avg_entry_price", "realized_pnl_delta", "simulated").
			Values(fact.ID, fact.Index.Timestamp.UnixNano(), fact.Index.Sequence,
				fact.EventTime, fact.Symbol, fact.QuantityChange.String(),
				fact.Quantity.String(), fact.AvgEntryPrice.String(),
				fact.RealizedPnLDelta.String(), fact.Simulated).
			ToSql()
		if err != nil {
			return errors.Wrap(errors.ErrCodePersistenceAppend, "failed to build position insert", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			s.discardStaging()
			return errors.Wrapf(errors.ErrCodePersistenceAppend, err,
				"failed to append position fact %s", fact.ID)
		}
	}

	return nil
}

// Flush commits the staged batch. On failure the staged transaction is rolled
// back and the caller is expected to re-append and retry.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx == nil {
		return nil
	}

	tx := s.tx
	s.tx = nil

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodePersistenceFlush, "failed to commit fact batch", err)
	}

	return nil
}

// LoadBalances returns all persisted balance facts in CompositeIndex order.
func (s *Store) LoadBalances(ctx context.Context) ([]types.BalanceUpdate, error) {
	query, args, err := s.sq.
		Select("id", "ts_ns", "seq", "event_time", "venue_id", "account_type",
			"asset", "quantity_change", "quantity", "simulated").
		From("balance_updates").
		OrderBy("ts_ns", "seq").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build balance query", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query balance facts", err)
	}
	defer rows.Close()

	var facts []types.BalanceUpdate

	for rows.Next() {
		var (
			fact           types.BalanceUpdate
			tsNs           int64
			accountType    string
			quantityChange string
			quantity       string
		)

		err := rows.Scan(&fact.ID, &tsNs, &fact.Index.Sequence, &fact.EventTime,
			&fact.VenueID, &accountType, &fact.Asset, &quantityChange, &quantity,
			&fact.Simulated)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan balance fact", err)
		}

		fact.Index.Timestamp = time.Unix(0, tsNs).UTC()
		fact.AccountType = types.AccountType(accountType)

		if fact.QuantityChange, err = decimal.NewFromString(quantityChange); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "corrupt quantity_change", err)
		}

		if fact.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "corrupt quantity", err)
		}

		facts = append(facts, fact)
	}

	return facts, rows.Err()
}

// LoadPositions returns all persisted position facts in CompositeIndex order.
func (s *Store) LoadPositions(ctx context.Context) ([]types.PositionUpdate, error) {
	query, args, err := s.sq.
		Select("id", "ts_ns", "seq", "event_time", "symbol", "quantity_change",
			"quantity", "avg_entry_price", "realized_pnl_delta", "simulated").
		From("position_updates").
		OrderBy("ts_ns", "seq").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build position query", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query position facts", err)
	}
	defer rows.Close()

	var facts []types.PositionUpdate

	for rows.Next() {
		var (
			fact     types.PositionUpdate
			tsNs     int64
			decimals [4]string
		)

		err := rows.Scan(&fact.ID, &tsNs, &fact.Index.Sequence, &fact.EventTime,
			&fact.Symbol, &decimals[0], &decimals[1], &decimals[2], &decimals[3],
			&fact.Simulated)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan position fact", err)
		}

		fact.Index.Timestamp = time.Unix(0, tsNs).UTC()

		targets := []*decimal.Decimal{
			&fact.QuantityChange, &fact.Quantity, &fact.AvgEntryPrice, &fact.RealizedPnLDelta,
		}
		for i, target := range targets {
			if *target, err = decimal.NewFromString(decimals[i]); err != nil {
				return nil, errors.Wrap(errors.ErrCodeQueryFailed, "corrupt position decimal", err)
			}
		}

		facts = append(facts, fact)
	}

	return facts, rows.Err()
}

// Close rolls back any uncommitted batch and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}

	return s.db.Close()
}
