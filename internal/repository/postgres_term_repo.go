package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/brandwatch/internal/model"
)

// PostgresTermSetRepo はPostgreSQLを使用した検索語セットリポジトリ。
// included/excludedはJSONBカラムに保持する。
type PostgresTermSetRepo struct {
	db *sql.DB
}

// NewPostgresTermSetRepo はPostgresTermSetRepoを生成する。
func NewPostgresTermSetRepo(db *sql.DB) *PostgresTermSetRepo {
	return &PostgresTermSetRepo{db: db}
}

// termJSON はincludedカラムのJSON表現。
type termJSON struct {
	Value    string   `json:"value"`
	Synonyms []string `json:"synonyms"`
}

// FindBySubject は指定主体の検索語セットを取得する。見つからない場合はnilを返す。
func (r *PostgresTermSetRepo) FindBySubject(ctx context.Context, subject model.Subject) (*model.TermSet, error) {
	var includedRaw, excludedRaw []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT included, excluded FROM search_terms WHERE subject = $1`,
		subject,
	).Scan(&includedRaw, &excludedRaw)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("検索語セットの取得に失敗しました: %w", err)
	}

	var included []termJSON
	if err := json.Unmarshal(includedRaw, &included); err != nil {
		return nil, fmt.Errorf("包含語のデコードに失敗しました: %w", err)
	}

	var excluded []string
	if err := json.Unmarshal(excludedRaw, &excluded); err != nil {
		return nil, fmt.Errorf("除外語のデコードに失敗しました: %w", err)
	}

	ts := &model.TermSet{
		Subject:  subject,
		Excluded: excluded,
	}
	for _, t := range included {
		ts.Included = append(ts.Included, model.Term{Value: t.Value, Synonyms: t.Synonyms})
	}
	return ts, nil
}

// compile-time interface check
var _ TermSetRepository = (*PostgresTermSetRepo)(nil)
