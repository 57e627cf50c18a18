package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/brandwatch/internal/model"
)

// PostgresResultRepo はPostgreSQLを使用した収集結果リポジトリ。
// 結果IDは正規化URLのSHA-256であり、重複排除は主キー衝突で実現する。
type PostgresResultRepo struct {
	db *sql.DB
}

// NewPostgresResultRepo はPostgresResultRepoを生成する。
func NewPostgresResultRepo(db *sql.DB) *PostgresResultRepo {
	return &PostgresResultRepo{db: db}
}

const resultColumns = `id, run_id, subject, link, display_link, title, snippet,
	        html_snippet, page_metadata, provenance, pipeline_status, discovered_at`

// CreateIfAbsent は同一IDの結果が存在しない場合に限り作成する。
// 作成した場合はtrue、既存だった場合はfalseを返す。既存行は変更しない。
func (r *PostgresResultRepo) CreateIfAbsent(ctx context.Context, item *model.ResultItem) (bool, error) {
	var metadata interface{}
	if len(item.PageMetadata) > 0 {
		metadata = item.PageMetadata
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO results (id, run_id, subject, link, display_link, title,
		                      snippet, html_snippet, page_metadata, provenance,
		                      pipeline_status, discovered_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO NOTHING`,
		item.ID, item.RunID, item.Subject, item.Link, item.DisplayLink, item.Title,
		item.Snippet, item.HTMLSnippet, metadata, item.Provenance,
		item.PipelineStatus, item.DiscoveredAt,
	)
	if err != nil {
		return false, fmt.Errorf("結果の作成に失敗しました: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("結果作成の影響行数取得に失敗しました: %w", err)
	}
	return n == 1, nil
}

// FindByID は指定IDの結果を取得する。見つからない場合はnilを返す。
func (r *PostgresResultRepo) FindByID(ctx context.Context, id string) (*model.ResultItem, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+resultColumns+` FROM results WHERE id = $1`, id)

	item, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("結果の取得に失敗しました: %w", err)
	}
	return item, nil
}

// ListByPipelineStatus は指定ステータスの結果を発見日時の昇順で取得する。
func (r *PostgresResultRepo) ListByPipelineStatus(ctx context.Context, status model.PipelineStatus, limit int) ([]model.ResultItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+resultColumns+` FROM results
		 WHERE pipeline_status = $1
		 ORDER BY discovered_at ASC
		 LIMIT $2`,
		status, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("結果一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var items []model.ResultItem
	for rows.Next() {
		item, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("結果の行読み取りに失敗しました: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("結果一覧の走査に失敗しました: %w", err)
	}
	return items, nil
}

// UpdatePipelineStatus は結果のパイプライン状態を更新する。
// 対象が存在しない場合はfalseを返す。
func (r *PostgresResultRepo) UpdatePipelineStatus(ctx context.Context, id string, status model.PipelineStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE results SET pipeline_status = $2 WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return false, fmt.Errorf("パイプライン状態の更新に失敗しました: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("パイプライン状態更新の影響行数取得に失敗しました: %w", err)
	}
	return n == 1, nil
}

// CountBySubject は主体ごとの結果数を返す。
func (r *PostgresResultRepo) CountBySubject(ctx context.Context) (map[model.Subject]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT subject, count(*) FROM results GROUP BY subject`)
	if err != nil {
		return nil, fmt.Errorf("主体別結果数の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Subject]int)
	for rows.Next() {
		var subject model.Subject
		var count int
		if err := rows.Scan(&subject, &count); err != nil {
			return nil, fmt.Errorf("主体別結果数の行読み取りに失敗しました: %w", err)
		}
		counts[subject] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("主体別結果数の走査に失敗しました: %w", err)
	}
	return counts, nil
}

func scanResult(s rowScanner) (*model.ResultItem, error) {
	item := &model.ResultItem{}
	var metadata []byte
	if err := s.Scan(
		&item.ID, &item.RunID, &item.Subject, &item.Link, &item.DisplayLink,
		&item.Title, &item.Snippet, &item.HTMLSnippet, &metadata,
		&item.Provenance, &item.PipelineStatus, &item.DiscoveredAt,
	); err != nil {
		return nil, err
	}
	item.PageMetadata = metadata
	return item, nil
}

// compile-time interface check
var _ ResultRepository = (*PostgresResultRepo)(nil)
