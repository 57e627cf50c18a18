package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/brandwatch/internal/model"
)

// watermarkID は単一行運用のウォーターマークの固定ID。
const watermarkID = "default"

// PostgresWatermarkRepo はPostgreSQLを使用したバックフィルウォーターマークリポジトリ。
type PostgresWatermarkRepo struct {
	db *sql.DB
}

// NewPostgresWatermarkRepo はPostgresWatermarkRepoを生成する。
func NewPostgresWatermarkRepo(db *sql.DB) *PostgresWatermarkRepo {
	return &PostgresWatermarkRepo{db: db}
}

// Get はウォーターマークを取得する。未初期化の場合はnilを返す。
func (r *PostgresWatermarkRepo) Get(ctx context.Context) (*model.BackfillWatermark, error) {
	w := &model.BackfillWatermark{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, floor_date, last_completed_date, status, updated_at
		 FROM backfill_watermarks WHERE id = $1`,
		watermarkID,
	).Scan(&w.ID, &w.FloorDate, &w.LastCompletedDate, &w.Status, &w.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ウォーターマークの取得に失敗しました: %w", err)
	}
	return w, nil
}

// Create はウォーターマークを新規作成する。既に存在する場合は何もせずfalseを返す。
func (r *PostgresWatermarkRepo) Create(ctx context.Context, w *model.BackfillWatermark) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO backfill_watermarks (id, floor_date, last_completed_date, status, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (id) DO NOTHING`,
		watermarkID, model.Day(w.FloorDate), model.Day(w.LastCompletedDate), w.Status,
	)
	if err != nil {
		return false, fmt.Errorf("ウォーターマークの作成に失敗しました: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ウォーターマーク作成の影響行数取得に失敗しました: %w", err)
	}
	if n == 1 {
		w.ID = watermarkID
	}
	return n == 1, nil
}

// UpdateFloor はfloor_dateと状態を更新する。
func (r *PostgresWatermarkRepo) UpdateFloor(ctx context.Context, floor time.Time, status model.BackfillStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE backfill_watermarks
		 SET floor_date = $2, status = $3, updated_at = now()
		 WHERE id = $1`,
		watermarkID, model.Day(floor), status,
	)
	if err != nil {
		return fmt.Errorf("ウォーターマークの下限更新に失敗しました: %w", err)
	}
	return nil
}

// Advance はlast_completed_dateが期待値と一致する場合に限り前進させる。
// 一致しない場合は何もせずfalseを返す。
func (r *PostgresWatermarkRepo) Advance(ctx context.Context, expected, next time.Time, status model.BackfillStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE backfill_watermarks
		 SET last_completed_date = $3, status = $4, updated_at = now()
		 WHERE id = $1 AND last_completed_date = $2`,
		watermarkID, model.Day(expected), model.Day(next), status,
	)
	if err != nil {
		return false, fmt.Errorf("ウォーターマークの前進に失敗しました: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ウォーターマーク前進の影響行数取得に失敗しました: %w", err)
	}
	return n == 1, nil
}

// compile-time interface check
var _ WatermarkRepository = (*PostgresWatermarkRepo)(nil)
