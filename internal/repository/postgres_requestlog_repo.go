package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/brandwatch/internal/model"
)

// PostgresRequestLogRepo はPostgreSQLを使用したリクエスト記録リポジトリ。
type PostgresRequestLogRepo struct {
	db *sql.DB
}

// NewPostgresRequestLogRepo はPostgresRequestLogRepoを生成する。
func NewPostgresRequestLogRepo(db *sql.DB) *PostgresRequestLogRepo {
	return &PostgresRequestLogRepo{db: db}
}

// Append はリクエスト記録を追記する。
func (r *PostgresRequestLogRepo) Append(ctx context.Context, entry *model.RequestLogEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO request_logs (id, run_id, subject, mode, page,
		                           range_start, range_end, items_returned, items_new, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.RunID, entry.Subject, entry.Mode, entry.Page,
		model.Day(entry.RangeStart), model.Day(entry.RangeEnd),
		entry.ItemsReturned, entry.ItemsNew, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("リクエスト記録の追記に失敗しました: %w", err)
	}
	return nil
}

// CountByRun は指定Runのリクエスト数を返す。
func (r *PostgresRequestLogRepo) CountByRun(ctx context.Context, runID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM request_logs WHERE run_id = $1`, runID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("リクエスト数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Count は全リクエスト数を返す。
func (r *PostgresRequestLogRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM request_logs`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("総リクエスト数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// ListRecent は記録日時の降順でリクエスト記録を取得する。
func (r *PostgresRequestLogRepo) ListRecent(ctx context.Context, limit int) ([]model.RequestLogEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, run_id, subject, mode, page, range_start, range_end,
		        items_returned, items_new, created_at
		 FROM request_logs
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("リクエスト記録一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []model.RequestLogEntry
	for rows.Next() {
		var entry model.RequestLogEntry
		if err := rows.Scan(
			&entry.ID, &entry.RunID, &entry.Subject, &entry.Mode, &entry.Page,
			&entry.RangeStart, &entry.RangeEnd,
			&entry.ItemsReturned, &entry.ItemsNew, &entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("リクエスト記録の行読み取りに失敗しました: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リクエスト記録一覧の走査に失敗しました: %w", err)
	}
	return entries, nil
}

// compile-time interface check
var _ RequestLogRepository = (*PostgresRequestLogRepo)(nil)
