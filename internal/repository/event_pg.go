package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Baptiste-Yucca/rent2repay/internal/model"
	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/logger"
	"github.com/jmoiron/sqlx"
)

type PostgresEventRepo struct {
	db *sqlx.DB
}

func NewPostgresEventRepo(db *sqlx.DB) *PostgresEventRepo {
	repo := &PostgresEventRepo{db: db}
	if err := repo.ensureSchema(context.Background()); err != nil {
		logger.Error("failed to ensure engine_events schema", "error", err)
	}
	return repo
}

type eventRow struct {
	ID        string    `db:"id"`
	Kind      string    `db:"kind"`
	UserAddr  string    `db:"user_addr"`
	AssetAddr string    `db:"asset_addr"`
	Executor  string    `db:"executor"`
	Amount    string    `db:"amount"`
	BotFee    string    `db:"bot_fee"`
	DaoFee    string    `db:"dao_fee"`
	Context   []byte    `db:"context"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *PostgresEventRepo) Insert(ctx context.Context, entry *model.Event) error {
	if entry == nil {
		return nil
	}
	ctxJSON, err := json.Marshal(entry.Context)
	if err != nil {
		ctxJSON = []byte("{}")
	}
	query := `
		INSERT INTO engine_events (id, kind, user_addr, asset_addr, executor, amount, bot_fee, dao_fee, context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = r.db.ExecContext(ctx, query,
		entry.ID, string(entry.Kind), entry.User, entry.Asset, entry.Executor,
		entry.Amount, entry.BotFee, entry.DaoFee, ctxJSON, entry.CreatedAt)
	return err
}

func (r *PostgresEventRepo) List(ctx context.Context, user string, limit int) ([]*model.Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	var rows []eventRow
	var err error
	if user != "" {
		query := `SELECT id, kind, user_addr, asset_addr, executor, amount, bot_fee, dao_fee, context, created_at
		          FROM engine_events WHERE user_addr = $1 ORDER BY created_at DESC LIMIT $2`
		err = r.db.SelectContext(ctx, &rows, query, user, limit)
	} else {
		query := `SELECT id, kind, user_addr, asset_addr, executor, amount, bot_fee, dao_fee, context, created_at
		          FROM engine_events ORDER BY created_at DESC LIMIT $1`
		err = r.db.SelectContext(ctx, &rows, query, limit)
	}
	if err != nil {
		return nil, err
	}

	results := make([]*model.Event, 0, len(rows))
	for _, row := range rows {
		entry := &model.Event{
			ID:        row.ID,
			Kind:      model.EventKind(row.Kind),
			User:      row.UserAddr,
			Asset:     row.AssetAddr,
			Executor:  row.Executor,
			Amount:    row.Amount,
			BotFee:    row.BotFee,
			DaoFee:    row.DaoFee,
			CreatedAt: row.CreatedAt,
		}
		if len(row.Context) > 0 {
			_ = json.Unmarshal(row.Context, &entry.Context)
		}
		results = append(results, entry)
	}
	return results, nil
}

// Cleanup drops events older than the retention window.
func (r *PostgresEventRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	_, err := r.db.ExecContext(ctx, `DELETE FROM engine_events WHERE created_at < $1`, cutoff)
	return err
}

func (r *PostgresEventRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS engine_events (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			user_addr TEXT NOT NULL DEFAULT '',
			asset_addr TEXT NOT NULL DEFAULT '',
			executor TEXT NOT NULL DEFAULT '',
			amount TEXT NOT NULL DEFAULT '',
			bot_fee TEXT NOT NULL DEFAULT '',
			dao_fee TEXT NOT NULL DEFAULT '',
			context JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_engine_events_user ON engine_events (user_addr, created_at DESC)`)
	return nil
}
