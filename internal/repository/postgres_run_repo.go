package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/brandwatch/internal/model"
)

// PostgresRunRepo はPostgreSQLを使用した収集実行台帳リポジトリ。
type PostgresRunRepo struct {
	db *sql.DB
}

// NewPostgresRunRepo はPostgresRunRepoを生成する。
func NewPostgresRunRepo(db *sql.DB) *PostgresRunRepo {
	return &PostgresRunRepo{db: db}
}

const runColumns = `id, mode, subject, query, range_start, range_end, result_count,
	        status, quota_truncated, provenance, started_at, finished_at`

// CreateInProgressGuarded は同一モードのin_progressなRunが存在しない場合に
// 限りRunを作成する。作成できた場合はtrueを返す。
// 同時起動同士の競合はモードごとのアドバイザリロックで直列化する。
func (r *PostgresRunRepo) CreateInProgressGuarded(ctx context.Context, run *model.Run) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	// 同一モードのガード取得を直列化する（トランザクション終了で自動解放）。
	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext('runs_guard_' || $1::text))`,
		string(run.Mode),
	); err != nil {
		return false, fmt.Errorf("実行ガードのロック取得に失敗しました: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, mode, subject, query, range_start, range_end,
		                   status, quota_truncated, provenance, started_at)
		 SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		 WHERE NOT EXISTS (
		     SELECT 1 FROM runs WHERE mode = $2 AND status = $7
		 )`,
		run.ID, run.Mode, run.Subject, run.Query,
		model.Day(run.RangeStart), model.Day(run.RangeEnd),
		model.RunStatusInProgress, run.QuotaTruncated, run.Provenance, run.StartedAt,
	)
	if err != nil {
		return false, fmt.Errorf("実行レコードの作成に失敗しました: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("実行レコード作成の影響行数取得に失敗しました: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("実行レコード作成のコミットに失敗しました: %w", err)
	}
	run.Status = model.RunStatusInProgress
	return true, nil
}

// Create はガードなしでRunを作成する。
func (r *PostgresRunRepo) Create(ctx context.Context, run *model.Run) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, subject, query, range_start, range_end,
		                   status, quota_truncated, provenance, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.Mode, run.Subject, run.Query,
		model.Day(run.RangeStart), model.Day(run.RangeEnd),
		model.RunStatusInProgress, run.QuotaTruncated, run.Provenance, run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("実行レコードの作成に失敗しました: %w", err)
	}
	run.Status = model.RunStatusInProgress
	return nil
}

// Finish はRunの状態を確定する。in_progressのRunに対してのみ有効。
func (r *PostgresRunRepo) Finish(ctx context.Context, id string, status model.RunStatus, resultCount int, quotaTruncated bool, finishedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE runs
		 SET status = $2, result_count = $3, quota_truncated = $4, finished_at = $5
		 WHERE id = $1 AND status = $6`,
		id, status, resultCount, quotaTruncated, finishedAt, model.RunStatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("実行レコードの確定に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのRunを取得する。見つからない場合はnilを返す。
func (r *PostgresRunRepo) FindByID(ctx context.Context, id string) (*model.Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = $1`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("実行レコードの取得に失敗しました: %w", err)
	}
	return run, nil
}

// CountInProgressByMode は指定モードのin_progressなRunの数を返す。
func (r *PostgresRunRepo) CountInProgressByMode(ctx context.Context, mode model.Mode) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM runs WHERE mode = $1 AND status = $2`,
		mode, model.RunStatusInProgress,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("実行中レコード数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// CountByMode はモードごとのRun数を返す。
func (r *PostgresRunRepo) CountByMode(ctx context.Context) (map[model.Mode]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT mode, count(*) FROM runs GROUP BY mode`)
	if err != nil {
		return nil, fmt.Errorf("モード別実行数の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Mode]int)
	for rows.Next() {
		var mode model.Mode
		var count int
		if err := rows.Scan(&mode, &count); err != nil {
			return nil, fmt.Errorf("モード別実行数の行読み取りに失敗しました: %w", err)
		}
		counts[mode] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("モード別実行数の走査に失敗しました: %w", err)
	}
	return counts, nil
}

// ListRecent は開始日時の降順でRunを取得する。
func (r *PostgresRunRepo) ListRecent(ctx context.Context, limit int) ([]*model.Run, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("実行レコード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("実行レコードの行読み取りに失敗しました: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("実行レコード一覧の走査に失敗しました: %w", err)
	}
	return runs, nil
}

// rowScanner はsql.Rowとsql.Rowsの共通スキャンインターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s rowScanner) (*model.Run, error) {
	run := &model.Run{}
	var finishedAt sql.NullTime
	if err := s.Scan(
		&run.ID, &run.Mode, &run.Subject, &run.Query,
		&run.RangeStart, &run.RangeEnd, &run.ResultCount,
		&run.Status, &run.QuotaTruncated, &run.Provenance,
		&run.StartedAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return run, nil
}

// compile-time interface check
var _ RunRepository = (*PostgresRunRepo)(nil)
