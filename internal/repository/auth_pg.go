package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"

	"github.com/Baptiste-Yucca/rent2repay/internal/model"
	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/apperrors"
	"github.com/Baptiste-Yucca/rent2repay/internal/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"
)

// PostgresAuthStore 生产环境的授权存储。Reserve 用单条带条件的 UPDATE
// 完成「回卷 + 校验 + 累加」，由数据库的行级原子性提供串行化。
type PostgresAuthStore struct {
	db        *sqlx.DB
	periodLen int64
}

func NewPostgresAuthStore(db *sqlx.DB, periodLenSeconds int64) *PostgresAuthStore {
	store := &PostgresAuthStore{db: db, periodLen: periodLenSeconds}
	if err := store.ensureSchema(context.Background()); err != nil {
		logger.Error("failed to ensure authorizations schema", "error", err)
	}
	return store
}

type authRow struct {
	UserAddr    string `db:"user_addr"`
	AssetAddr   string `db:"asset_addr"`
	PeriodCap   string `db:"period_cap"`
	PeriodStart int64  `db:"period_start"`
	Spent       string `db:"spent"`
}

func (s *PostgresAuthStore) Get(ctx context.Context, user, asset common.Address) (*model.UserAuthorization, error) {
	var row authRow
	query := `SELECT user_addr, asset_addr, period_cap::text, period_start, spent::text
	          FROM authorizations WHERE user_addr = $1 AND asset_addr = $2`
	err := s.db.GetContext(ctx, &row, query, user.Hex(), asset.Hex())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rowToAuth(&row)
}

func (s *PostgresAuthStore) Put(ctx context.Context, auth *model.UserAuthorization) error {
	if auth == nil {
		return nil
	}
	query := `
		INSERT INTO authorizations (user_addr, asset_addr, period_cap, period_start, spent, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5::numeric, now())
		ON CONFLICT (user_addr, asset_addr)
		DO UPDATE SET period_cap = $3::numeric,
		              period_start = $4,
		              spent = $5::numeric,
		              updated_at = now()
	`
	_, err := s.db.ExecContext(ctx, query,
		auth.User.Hex(), auth.Asset.Hex(),
		auth.PeriodCap.String(), auth.PeriodStart, auth.SpentThisPeriod.String())
	return err
}

// Reserve 原子预留。CASE 表达式全部基于旧行值求值，所以回卷判断与
// 累加校验属于同一次写入，并发触发者之间不存在可观察的中间态。
func (s *PostgresAuthStore) Reserve(ctx context.Context, user, asset common.Address, amount *big.Int, now int64) error {
	query := `
		UPDATE authorizations SET
			period_start = CASE WHEN $3 >= period_start + $4
				THEN period_start + $4 * (($3 - period_start) / $4)
				ELSE period_start END,
			spent = CASE WHEN $3 >= period_start + $4
				THEN $5::numeric
				ELSE spent + $5::numeric END,
			updated_at = now()
		WHERE user_addr = $1 AND asset_addr = $2
		  AND period_cap > 0
		  AND (CASE WHEN $3 >= period_start + $4
				THEN $5::numeric
				ELSE spent + $5::numeric END) <= period_cap
	`
	res, err := s.db.ExecContext(ctx, query,
		user.Hex(), asset.Hex(), now, s.periodLen, amount.String())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// 区分失败原因：没有记录/已撤销 vs 额度不足
	rec, err := s.Get(ctx, user, asset)
	if err != nil {
		return err
	}
	if !rec.Authorized() {
		return apperrors.NewNotAuthorized("no active authorization for user/asset")
	}
	return apperrors.NewCapExceeded(fmt.Sprintf(
		"reserve %s exceeds remaining allowance (cap %s)", amount, rec.PeriodCap))
}

func (s *PostgresAuthStore) Release(ctx context.Context, user, asset common.Address, amount *big.Int) error {
	query := `
		UPDATE authorizations
		SET spent = GREATEST(spent - $3::numeric, 0), updated_at = now()
		WHERE user_addr = $1 AND asset_addr = $2
	`
	_, err := s.db.ExecContext(ctx, query, user.Hex(), asset.Hex(), amount.String())
	return err
}

func (s *PostgresAuthStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS authorizations (
			user_addr TEXT NOT NULL,
			asset_addr TEXT NOT NULL,
			period_cap NUMERIC(78,0) NOT NULL DEFAULT 0,
			period_start BIGINT NOT NULL DEFAULT 0,
			spent NUMERIC(78,0) NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_addr, asset_addr)
		)
	`)
	return err
}

func rowToAuth(row *authRow) (*model.UserAuthorization, error) {
	cap, ok := new(big.Int).SetString(row.PeriodCap, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt period_cap %q", row.PeriodCap)
	}
	spent, ok := new(big.Int).SetString(row.Spent, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt spent %q", row.Spent)
	}
	return &model.UserAuthorization{
		User:            common.HexToAddress(row.UserAddr),
		Asset:           common.HexToAddress(row.AssetAddr),
		PeriodCap:       cap,
		PeriodStart:     row.PeriodStart,
		SpentThisPeriod: spent,
	}, nil
}
