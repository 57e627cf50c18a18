package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/brandwatch/internal/model"
)

// PostgresQuotaRepo はPostgreSQLを使用した日次クォータリポジトリ。
// 消費のチェックと加算は単一SQL文で原子的に行うため、複数プロセスが
// 同時に消費しても上限を超えることはない。
type PostgresQuotaRepo struct {
	db *sql.DB
}

// NewPostgresQuotaRepo はPostgresQuotaRepoを生成する。
func NewPostgresQuotaRepo(db *sql.DB) *PostgresQuotaRepo {
	return &PostgresQuotaRepo{db: db}
}

// TryConsume は指定日のクォータを1消費する。
// 行が無ければ新規作成し、上限到達時は消費せずfalseを返す。
func (r *PostgresQuotaRepo) TryConsume(ctx context.Context, date time.Time, limit int) (bool, error) {
	// 初回消費時に行を作成し、以降はused+1が上限内の場合のみ更新する。
	// ON CONFLICTのWHERE句で条件を満たさない場合、影響行数は0になる。
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO daily_quotas (date, requests_used, requests_limit, updated_at)
		 VALUES ($1, 1, $2, now())
		 ON CONFLICT (date) DO UPDATE
		 SET requests_used = daily_quotas.requests_used + 1, updated_at = now()
		 WHERE daily_quotas.requests_used < daily_quotas.requests_limit`,
		model.Day(date), limit,
	)
	if err != nil {
		return false, fmt.Errorf("クォータの消費に失敗しました: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("クォータ消費の影響行数取得に失敗しました: %w", err)
	}
	return n == 1, nil
}

// ForceConsume は上限チェックなしでクォータを1消費する。
func (r *PostgresQuotaRepo) ForceConsume(ctx context.Context, date time.Time, limit int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO daily_quotas (date, requests_used, requests_limit, updated_at)
		 VALUES ($1, 1, $2, now())
		 ON CONFLICT (date) DO UPDATE
		 SET requests_used = daily_quotas.requests_used + 1, updated_at = now()`,
		model.Day(date), limit,
	)
	if err != nil {
		return fmt.Errorf("クォータの記録に失敗しました: %w", err)
	}
	return nil
}

// Get は指定日のクォータを取得する。行が無い場合は使用量0の値を返す。
func (r *PostgresQuotaRepo) Get(ctx context.Context, date time.Time, limit int) (model.DailyQuota, error) {
	quota := model.DailyQuota{
		Date:          model.Day(date),
		RequestsLimit: limit,
	}

	err := r.db.QueryRowContext(ctx,
		`SELECT requests_used, requests_limit, updated_at
		 FROM daily_quotas WHERE date = $1`,
		model.Day(date),
	).Scan(&quota.RequestsUsed, &quota.RequestsLimit, &quota.UpdatedAt)

	if err == sql.ErrNoRows {
		return quota, nil
	}
	if err != nil {
		return quota, fmt.Errorf("クォータの取得に失敗しました: %w", err)
	}
	return quota, nil
}

// compile-time interface check
var _ QuotaRepository = (*PostgresQuotaRepo)(nil)
