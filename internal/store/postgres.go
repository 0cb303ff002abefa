package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/papertrade/ledger-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, name, cash, created_at)
		 VALUES ($1, $2, $3::NUMERIC, $4)`,
		u.ID, u.Name, u.Cash.String(), u.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	var cash string

	err := s.pool.QueryRow(ctx,
		`SELECT id, name, cash::TEXT, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &cash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	u.Cash, _ = decimal.NewFromString(cash)
	return &u, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, cash::TEXT, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		var cash string
		if err := rows.Scan(&u.ID, &u.Name, &cash, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Cash, _ = decimal.NewFromString(cash)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) GetAssetBySymbol(ctx context.Context, symbol string) (*model.Asset, error) {
	return s.scanAsset(s.pool.QueryRow(ctx,
		`SELECT id, symbol, name, last_price::TEXT FROM assets WHERE symbol = $1`, symbol))
}

func (s *PostgresStore) UpsertAsset(ctx context.Context, a *model.Asset) (*model.Asset, error) {
	return s.scanAsset(s.pool.QueryRow(ctx,
		`INSERT INTO assets (id, symbol, name, last_price)
		 VALUES ($1, $2, $3, $4::NUMERIC)
		 ON CONFLICT (symbol) DO UPDATE
		 SET name = EXCLUDED.name, last_price = EXCLUDED.last_price
		 RETURNING id, symbol, name, last_price::TEXT`,
		a.ID, a.Symbol, a.Name, a.LastPrice.String()))
}

func (s *PostgresStore) SearchAsset(ctx context.Context, q string) (*model.Asset, error) {
	return s.scanAsset(s.pool.QueryRow(ctx,
		`SELECT id, symbol, name, last_price::TEXT FROM assets
		 WHERE symbol = $1 OR name ILIKE '%' || $1 || '%'
		 ORDER BY (symbol = $1) DESC, symbol
		 LIMIT 1`, q))
}

type pgxRow interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresStore) scanAsset(row pgxRow) (*model.Asset, error) {
	var a model.Asset
	var price string

	err := row.Scan(&a.ID, &a.Symbol, &a.Name, &price)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan asset: %w", err)
	}

	a.LastPrice, _ = decimal.NewFromString(price)
	return &a, nil
}

func (s *PostgresStore) GetHolding(ctx context.Context, userID, assetID string) (*model.Holding, error) {
	var h model.Holding
	var qty string

	err := s.pool.QueryRow(ctx,
		`SELECT user_id, asset_id, qty::TEXT FROM holdings
		 WHERE user_id = $1 AND asset_id = $2`, userID, assetID).
		Scan(&h.UserID, &h.AssetID, &qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get holding: %w", err)
	}

	h.Qty, _ = decimal.NewFromString(qty)
	return &h, nil
}

func (s *PostgresStore) UpsertHolding(ctx context.Context, h *model.Holding) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO holdings (user_id, asset_id, qty)
		 VALUES ($1, $2, $3::NUMERIC)
		 ON CONFLICT (user_id, asset_id) DO UPDATE SET qty = EXCLUDED.qty`,
		h.UserID, h.AssetID, h.Qty.String(),
	)
	return err
}

func (s *PostgresStore) CreateHoldingIfAbsent(ctx context.Context, h *model.Holding) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO holdings (user_id, asset_id, qty)
		 VALUES ($1, $2, $3::NUMERIC)
		 ON CONFLICT (user_id, asset_id) DO NOTHING`,
		h.UserID, h.AssetID, h.Qty.String(),
	)
	return err
}

func (s *PostgresStore) DeleteHolding(ctx context.Context, userID, assetID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM holdings WHERE user_id = $1 AND asset_id = $2`, userID, assetID)
	return err
}

func (s *PostgresStore) GetUserHoldings(ctx context.Context, userID string) ([]model.HoldingView, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT h.asset_id, a.symbol, a.name,
		        h.qty::TEXT, a.last_price::TEXT, (h.qty * a.last_price)::TEXT
		 FROM holdings h
		 JOIN assets a ON a.id = h.asset_id
		 WHERE h.user_id = $1
		 ORDER BY a.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []model.HoldingView
	for rows.Next() {
		var v model.HoldingView
		var qty, price, value string
		if err := rows.Scan(&v.AssetID, &v.Symbol, &v.Name, &qty, &price, &value); err != nil {
			return nil, err
		}
		v.Qty, _ = decimal.NewFromString(qty)
		v.Price, _ = decimal.NewFromString(price)
		v.Value, _ = decimal.NewFromString(value)
		views = append(views, v)
	}
	return views, rows.Err()
}

// ApplyTrade applies all four ledger mutations in one transaction. The user
// row is locked FOR UPDATE and the cash delta is applied to the balance read
// under that lock, so concurrent orders on other assets cannot lose each
// other's debit.
func (s *PostgresStore) ApplyTrade(ctx context.Context, m *TradeMutation) (decimal.Decimal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("begin trade tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var cur string
	err = tx.QueryRow(ctx,
		`SELECT cash::TEXT FROM users WHERE id = $1 FOR UPDATE`, m.UserID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("lock user %s: %w", m.UserID, err)
	}

	cash, err := decimal.NewFromString(cur)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse cash %q: %w", cur, err)
	}
	newCash := cash.Add(m.CashDelta)
	if newCash.IsNegative() {
		return decimal.Zero, ErrInsufficientCash
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET cash = $2::NUMERIC WHERE id = $1`,
		m.UserID, newCash.String()); err != nil {
		return decimal.Zero, fmt.Errorf("update cash: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO holdings (user_id, asset_id, qty)
		 VALUES ($1, $2, $3::NUMERIC)
		 ON CONFLICT (user_id, asset_id) DO UPDATE SET qty = EXCLUDED.qty`,
		m.UserID, m.AssetID, m.NewQty.String()); err != nil {
		return decimal.Zero, fmt.Errorf("update holding: %w", err)
	}

	t := m.Trade
	if _, err := tx.Exec(ctx,
		`INSERT INTO trades (id, kind, user_id, asset_id, qty, price, at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6::NUMERIC, $7)`,
		t.ID, t.Kind, t.UserID, t.AssetID, t.Qty.String(), t.Price.String(), t.At); err != nil {
		return decimal.Zero, fmt.Errorf("insert trade: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE assets SET last_price = $2::NUMERIC WHERE id = $1`,
		m.AssetID, m.Price.String()); err != nil {
		return decimal.Zero, fmt.Errorf("update asset price: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, err
	}
	return newCash, nil
}

func (s *PostgresStore) GetTradesByUserAsset(ctx context.Context, userID, assetID string) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, user_id, asset_id, qty::TEXT, price::TEXT, at
		 FROM trades WHERE user_id = $1 AND asset_id = $2 ORDER BY at`,
		userID, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var qty, price string
		if err := rows.Scan(&t.ID, &t.Kind, &t.UserID, &t.AssetID, &qty, &price, &t.At); err != nil {
			return nil, err
		}
		t.Qty, _ = decimal.NewFromString(qty)
		t.Price, _ = decimal.NewFromString(price)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *PostgresStore) GetTradeHistory(ctx context.Context, userID string) ([]model.TradeView, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT t.id, t.kind, a.symbol, t.qty::TEXT, t.price::TEXT, t.at
		 FROM trades t
		 JOIN assets a ON a.id = t.asset_id
		 WHERE t.user_id = $1
		 ORDER BY t.at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []model.TradeView
	for rows.Next() {
		var v model.TradeView
		var qty, price string
		if err := rows.Scan(&v.ID, &v.Kind, &v.Symbol, &qty, &price, &v.At); err != nil {
			return nil, err
		}
		v.Qty, _ = decimal.NewFromString(qty)
		v.Price, _ = decimal.NewFromString(price)
		views = append(views, v)
	}
	return views, rows.Err()
}

func (s *PostgresStore) BadgeIDs(ctx context.Context, userID string) (map[int]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT skull_id FROM badges WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[int]bool)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

// AwardBadge relies on the (user_id, skull_id) primary key: a concurrent
// duplicate award is swallowed by ON CONFLICT DO NOTHING.
func (s *PostgresStore) AwardBadge(ctx context.Context, userID string, skullID int) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO badges (user_id, skull_id)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id, skull_id) DO NOTHING`,
		userID, skullID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ResetUser(ctx context.Context, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, q := range []string{
		`DELETE FROM trades WHERE user_id = $1`,
		`DELETE FROM holdings WHERE user_id = $1`,
		`DELETE FROM badges WHERE user_id = $1`,
	} {
		if _, err := tx.Exec(ctx, q, userID); err != nil {
			return fmt.Errorf("reset user: %w", err)
		}
	}
	tag, err := tx.Exec(ctx,
		`UPDATE users SET cash = $2::NUMERIC WHERE id = $1`,
		userID, model.DefaultCash.String())
	if err != nil {
		return fmt.Errorf("reset cash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) ResetAll(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, q := range []string{
		`DELETE FROM trades`,
		`DELETE FROM holdings`,
		`DELETE FROM badges`,
	} {
		if _, err := tx.Exec(ctx, q); err != nil {
			return fmt.Errorf("reset all: %w", err)
		}
	}
	if _, err := tx.Exec(ctx,
		`UPDATE users SET cash = $1::NUMERIC`, model.DefaultCash.String()); err != nil {
		return fmt.Errorf("reset cash: %w", err)
	}
	return tx.Commit(ctx)
}
