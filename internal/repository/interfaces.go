// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/brandwatch/internal/model"
)

// RunRepository は収集実行台帳の永続化インターフェース。
// 台帳はappend-onlyであり、既存行の更新はFinishによる
// status/result_count/finished_atの確定のみ。
type RunRepository interface {
	// CreateInProgressGuarded は同一モードのin_progressなRunが存在しない場合に
	// 限りRunを作成する。作成できた場合はtrueを返す。
	// 重複起動ガードとして、クォータ消費を伴う処理の前に呼ぶこと。
	CreateInProgressGuarded(ctx context.Context, run *model.Run) (bool, error)

	// Create はガードなしでRunを作成する。
	// 同一起動内の2件目以降（ガード取得済み）のRunに使用する。
	Create(ctx context.Context, run *model.Run) error

	// Finish はRunの状態を確定する。in_progressのRunに対してのみ有効。
	Finish(ctx context.Context, id string, status model.RunStatus, resultCount int, quotaTruncated bool, finishedAt time.Time) error

	// FindByID は指定IDのRunを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Run, error)

	// CountInProgressByMode は指定モードのin_progressなRunの数を返す。
	CountInProgressByMode(ctx context.Context, mode model.Mode) (int, error)

	// CountByMode はモードごとのRun数を返す。
	CountByMode(ctx context.Context) (map[model.Mode]int, error)

	// ListRecent は開始日時の降順でRunを取得する。
	ListRecent(ctx context.Context, limit int) ([]*model.Run, error)
}

// RequestLogRepository は検索APIリクエスト記録の永続化インターフェース。
// 記録はwrite-onceで、更新・削除は行わない。
type RequestLogRepository interface {
	// Append はリクエスト記録を追記する。
	Append(ctx context.Context, entry *model.RequestLogEntry) error

	// CountByRun は指定Runのリクエスト数を返す。
	CountByRun(ctx context.Context, runID string) (int, error)

	// Count は全リクエスト数を返す。
	Count(ctx context.Context) (int, error)

	// ListRecent は記録日時の降順でリクエスト記録を取得する。
	ListRecent(ctx context.Context, limit int) ([]model.RequestLogEntry, error)
}

// ResultRepository は重複排除付き結果ストアの永続化インターフェース。
type ResultRepository interface {
	// CreateIfAbsent は同一IDの結果が存在しない場合に限り作成する。
	// 新規作成した場合はtrue、既存だった場合はfalseを返す。
	// 既存行はいかなるフィールドも上書きされない。
	CreateIfAbsent(ctx context.Context, item *model.ResultItem) (bool, error)

	// FindByID は指定IDの結果を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ResultItem, error)

	// ListByPipelineStatus は指定ステータスの結果を発見日時の昇順で取得する。
	// 下流のスクレイパー/NLPステージが処理対象を引き出すために使う。
	ListByPipelineStatus(ctx context.Context, status model.PipelineStatus, limit int) ([]model.ResultItem, error)

	// UpdatePipelineStatus は結果のパイプライン状態を更新する。
	// 対象が存在しない場合はfalseを返す。
	UpdatePipelineStatus(ctx context.Context, id string, status model.PipelineStatus) (bool, error)

	// CountBySubject は主体ごとの結果数を返す。
	CountBySubject(ctx context.Context) (map[model.Subject]int, error)
}

// QuotaRepository は共有日次クォータの永続化インターフェース。
type QuotaRepository interface {
	// TryConsume は指定日のクォータを1消費する。
	// 行が無ければ上限limitで新規作成してから消費する。
	// 消費後の使用量が上限を超える場合は消費せずfalseを返す。
	// チェックと加算は単一SQL文で原子的に行われる。
	TryConsume(ctx context.Context, date time.Time, limit int) (bool, error)

	// ForceConsume は上限チェックなしでクォータを1消費する。
	// 強制モード（QUOTA_ENFORCEMENT=false）での使用量記録に使う。
	ForceConsume(ctx context.Context, date time.Time, limit int) error

	// Get は指定日のクォータを取得する。行が無い場合は
	// 使用量0・上限limitの値を返す（行は作成しない）。
	Get(ctx context.Context, date time.Time, limit int) (model.DailyQuota, error)
}

// WatermarkRepository はバックフィルウォーターマークの永続化インターフェース。
// ウォーターマークは単一行で運用する。
type WatermarkRepository interface {
	// Get はウォーターマークを取得する。未初期化の場合はnilを返す。
	Get(ctx context.Context) (*model.BackfillWatermark, error)

	// Create はウォーターマークを新規作成する。既に存在する場合は何もせずfalseを返す。
	Create(ctx context.Context, w *model.BackfillWatermark) (bool, error)

	// UpdateFloor はfloor_dateと状態を更新する。
	UpdateFloor(ctx context.Context, floor time.Time, status model.BackfillStatus) error

	// Advance はlast_completed_dateが期待値と一致する場合に限り
	// 次の値と状態へ進める。一致しない場合は何もせずfalseを返す。
	// 二重デプロイによる二重前進を防ぐための条件付き更新。
	Advance(ctx context.Context, expected, next time.Time, status model.BackfillStatus) (bool, error)
}

// TermSetRepository は検索語セットの読み取りインターフェース。
// 検索語の登録・編集は運用者の責務であり、エンジンからは読み取り専用。
type TermSetRepository interface {
	// FindBySubject は指定主体の検索語セットを取得する。
	// 見つからない場合はnilを返す。
	FindBySubject(ctx context.Context, subject model.Subject) (*model.TermSet, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
