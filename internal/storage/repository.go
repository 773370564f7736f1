package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"meurenda/internal/core"
	"meurenda/internal/state"

	_ "modernc.org/sqlite"
)

const timestampLayout = time.RFC3339Nano

// SQLiteRepository persists the ledger, the goals and paid users.
type SQLiteRepository struct {
	db *sql.DB
}

var _ state.Persister = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between concurrent saves.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newRepository(db), nil
}

func newRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Load implements state.Persister
func (r *SQLiteRepository) Load(ctx context.Context) (state.Snapshot, error) {
	txs, err := r.listTransactions(ctx)
	if err != nil {
		return state.Snapshot{}, err
	}
	goals, err := r.listGoals(ctx)
	if err != nil {
		return state.Snapshot{}, err
	}
	return state.Snapshot{Transactions: txs, Goals: goals}, nil
}

func (r *SQLiteRepository) listTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, date, amount, type, category, description
		FROM transactions
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		var (
			t                 core.Transaction
			date, amount, typ string
		)
		if err := rows.Scan(&t.ID, &date, &amount, &typ, &t.Category, &t.Description); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction %s amount: %w", t.ID, err)
		}
		t.Type = core.TransactionType(typ)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) listGoals(ctx context.Context) ([]core.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, target_value, work_days, selected_week_days, custom_total_days,
		       start_date, end_date, is_active, margin_mode, manual_margin_value
		FROM goals
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	out := []core.Goal{}
	for rows.Next() {
		var (
			g                      core.Goal
			typ, target, weekdays  string
			start, end, marginMode string
			manual                 sql.NullString
		)
		if err := rows.Scan(&g.ID, &typ, &target, &g.WorkDays, &weekdays, &g.CustomTotalDays,
			&start, &end, &g.IsActive, &marginMode, &manual); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		g.Type = core.GoalType(typ)
		g.MarginMode = core.MarginMode(marginMode)
		if g.TargetValue, err = decimal.NewFromString(target); err != nil {
			return nil, fmt.Errorf("goal %s target: %w", g.ID, err)
		}
		if err := json.Unmarshal([]byte(weekdays), &g.SelectedWeekDays); err != nil {
			return nil, fmt.Errorf("goal %s weekdays: %w", g.ID, err)
		}
		if err := g.StartDate.UnmarshalText([]byte(start)); err != nil {
			return nil, fmt.Errorf("goal %s start date: %w", g.ID, err)
		}
		if err := g.EndDate.UnmarshalText([]byte(end)); err != nil {
			return nil, fmt.Errorf("goal %s end date: %w", g.ID, err)
		}
		if manual.Valid {
			v, err := decimal.NewFromString(manual.String)
			if err != nil {
				return nil, fmt.Errorf("goal %s manual margin: %w", g.ID, err)
			}
			g.ManualMarginValue = &v
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// SaveTransactions implements state.Persister
func (r *SQLiteRepository) SaveTransactions(ctx context.Context, txs []core.Transaction) error {
	return r.replaceAll(ctx, "transactions", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transactions (id, position, date, amount, type, category, description)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, t := range txs {
			if _, err := stmt.ExecContext(ctx, t.ID, i, t.Date.String(), t.Amount.String(),
				string(t.Type), t.Category, t.Description); err != nil {
				return fmt.Errorf("insert transaction %s: %w", t.ID, err)
			}
		}
		return nil
	}, len(txs))
}

// SaveGoals implements state.Persister
func (r *SQLiteRepository) SaveGoals(ctx context.Context, goals []core.Goal) error {
	return r.replaceAll(ctx, "goals", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO goals (id, position, type, target_value, work_days, selected_week_days,
			                   custom_total_days, start_date, end_date, is_active, margin_mode, manual_margin_value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, g := range goals {
			weekdays := g.SelectedWeekDays
			if weekdays == nil {
				weekdays = []int{}
			}
			wd, err := json.Marshal(weekdays)
			if err != nil {
				return fmt.Errorf("encode weekdays for goal %s: %w", g.ID, err)
			}
			var manual sql.NullString
			if g.ManualMarginValue != nil {
				manual = sql.NullString{String: g.ManualMarginValue.String(), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, g.ID, i, string(g.Type), g.TargetValue.String(), g.WorkDays,
				string(wd), g.CustomTotalDays, g.StartDate.String(), g.EndDate.String(), g.IsActive,
				string(g.MarginMode), manual); err != nil {
				return fmt.Errorf("insert goal %s: %w", g.ID, err)
			}
		}
		return nil
	}, len(goals))
}

// replaceAll empties table and refills it inside one transaction.
func (r *SQLiteRepository) replaceAll(ctx context.Context, table string, fill func(*sql.Tx) error, count int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s save: %w", table, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if err := fill(tx); err != nil {
		return fmt.Errorf("save %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s save: %w", table, err)
	}

	slog.DebugContext(ctx, "Collection saved to SQLite", "table", table, "rows", count)
	return nil
}

// UpsertPaidUser inserts the user or refreshes the existing row with the same
// email in a single statement. created reports whether a new row was written;
// on conflict the stored id, registration time and password hash are kept.
func (r *SQLiteRepository) UpsertPaidUser(ctx context.Context, u core.PaidUser) (core.PaidUser, bool, error) {
	var id, registeredAt string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO paid_users (id, email, name, active, plan, order_id, product_name,
		                        password_hash, registered_at, updated_at, last_payment_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			plan = excluded.plan,
			order_id = excluded.order_id,
			product_name = excluded.product_name,
			updated_at = excluded.updated_at,
			last_payment_at = excluded.last_payment_at
		RETURNING id, registered_at`,
		u.ID, u.Email, u.Name, u.Active, u.Plan, u.OrderID, u.ProductName, u.PasswordHash,
		u.RegisteredAt.UTC().Format(timestampLayout),
		u.UpdatedAt.UTC().Format(timestampLayout),
		u.LastPaymentAt.UTC().Format(timestampLayout),
	).Scan(&id, &registeredAt)
	if err != nil {
		return core.PaidUser{}, false, fmt.Errorf("upsert paid user: %w", err)
	}

	created := id == u.ID
	u.ID = id
	if t, err := time.Parse(timestampLayout, registeredAt); err == nil {
		u.RegisteredAt = t
	}
	if !created {
		u.PasswordHash = ""
	}
	return u, created, nil
}

// GetPaidUserByEmail returns the stored user or core.ErrUserNotFound.
func (r *SQLiteRepository) GetPaidUserByEmail(ctx context.Context, email string) (core.PaidUser, error) {
	var u core.PaidUser
	var registeredAt, updatedAt, lastPayment string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, name, active, plan, order_id, product_name, password_hash,
		       registered_at, updated_at, last_payment_at
		FROM paid_users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Email, &u.Name, &u.Active, &u.Plan, &u.OrderID, &u.ProductName, &u.PasswordHash,
		&registeredAt, &updatedAt, &lastPayment)
	if errors.Is(err, sql.ErrNoRows) {
		return core.PaidUser{}, fmt.Errorf("%w: %s", core.ErrUserNotFound, email)
	}
	if err != nil {
		return core.PaidUser{}, fmt.Errorf("get paid user: %w", err)
	}
	u.RegisteredAt, _ = time.Parse(timestampLayout, registeredAt)
	u.UpdatedAt, _ = time.Parse(timestampLayout, updatedAt)
	u.LastPaymentAt, _ = time.Parse(timestampLayout, lastPayment)
	return u, nil
}
