// Package model はドメインモデルを定義する。
package model

import "time"

// Mode は収集の種別を表す。
type Mode string

const (
	// ModeRelevant は「今のデータ」を対象とする即時収集。
	ModeRelevant Mode = "relevant"
	// ModeHistorical は過去日を1日ずつ遡るバックフィル収集。
	ModeHistorical Mode = "historical"
	// ModeContinuous はスケジューラ起点の直近24時間の継続収集。
	ModeContinuous Mode = "continuous"
)

// Valid はModeが定義済みの値かを返す。
func (m Mode) Valid() bool {
	switch m {
	case ModeRelevant, ModeHistorical, ModeContinuous:
		return true
	}
	return false
}

// Subject は検索対象の主体を表す。
type Subject string

const (
	// SubjectBrand は自社ブランドを対象とする検索。
	SubjectBrand Subject = "brand"
	// SubjectCompetitor は競合を対象とする検索。
	SubjectCompetitor Subject = "competitor"
)

// AllSubjects は1回の論理収集でカバーする主体の順序付きリスト。
var AllSubjects = []Subject{SubjectBrand, SubjectCompetitor}

// RunStatus は収集実行の状態を表す。
type RunStatus string

const (
	// RunStatusInProgress は実行中の収集。
	RunStatusInProgress RunStatus = "in_progress"
	// RunStatusCompleted は正常終了した収集。
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed は失敗した収集。
	RunStatusFailed RunStatus = "failed"
)

// Run は1回の論理的な収集実行（モード×主体×日付範囲）を表す。
// 台帳としてappend-onlyで保持され、完了時のstatus/finished_at/
// result_countの更新以外に過去エントリが変更されることはない。
type Run struct {
	ID             string
	Mode           Mode
	Subject        Subject
	Query          string
	RangeStart     time.Time // 収集対象期間の開始日（日付粒度）
	RangeEnd       time.Time // 収集対象期間の終了日（continuousでは開始日と同一）
	ResultCount    int
	Status         RunStatus
	QuotaTruncated bool // クォータ枯渇により途中打ち切りされた場合にtrue
	Provenance     string
	StartedAt      time.Time
	FinishedAt     *time.Time
}

// RequestLogEntry は検索APIへの1ページ分のリクエスト記録を表す。
// write-onceであり、リトライは新しいページ番号として記録しない。
type RequestLogEntry struct {
	ID            string
	RunID         string
	Subject       Subject
	Mode          Mode
	Page          int
	RangeStart    time.Time
	RangeEnd      time.Time
	ItemsReturned int
	ItemsNew      int
	Timestamp     time.Time
}

// Day はtをUTCの日付粒度（00:00:00）に切り詰める。
// 日付範囲・クォータキー・ウォーターマークはすべてこの粒度で扱う。
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey は日次クォータのキーに使うISO形式の日付文字列を返す。
func DateKey(t time.Time) string {
	return Day(t).Format("2006-01-02")
}
