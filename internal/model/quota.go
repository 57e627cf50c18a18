package model

import "time"

// DailyQuota は特定日の検索APIリクエスト消費量を表す。
// DateはUTCの日付粒度で、全モード・全プロセスで共有される。
type DailyQuota struct {
	Date          time.Time
	RequestsUsed  int
	RequestsLimit int
	UpdatedAt     time.Time
}

// Remaining は残リクエスト数を返す。負にはならない。
func (q DailyQuota) Remaining() int {
	r := q.RequestsLimit - q.RequestsUsed
	if r < 0 {
		return 0
	}
	return r
}

// BackfillStatus はバックフィル状態機械の状態を表す。
type BackfillStatus string

const (
	// BackfillNotStarted はバックフィル未開始。
	BackfillNotStarted BackfillStatus = "not_started"
	// BackfillInProgress はfloor_dateまで遡る途中。
	BackfillInProgress BackfillStatus = "in_progress"
	// BackfillCompleted はfloor_dateまで収集が完了した状態。
	BackfillCompleted BackfillStatus = "completed"
)

// BackfillWatermark は履歴収集の進行位置を表す。
// LastCompletedDateは「次に収集すべき日」を指し、その翌日以降は
// 収集済みであることを意味する。1ステップ成功するごとに1日ずつ
// 過去へ進み、FloorDateより過去に達した時点でcompletedになる。
type BackfillWatermark struct {
	ID                string
	FloorDate         time.Time
	LastCompletedDate time.Time
	Status            BackfillStatus
	UpdatedAt         time.Time
}

// NextTarget は次のステップで収集すべき日を返す。
// completedの場合の値は意味を持たない。
func (w BackfillWatermark) NextTarget() time.Time {
	return Day(w.LastCompletedDate)
}

// Done はウォーターマークがfloorより過去まで進んだかを返す。
func (w BackfillWatermark) Done() bool {
	return Day(w.LastCompletedDate).Before(Day(w.FloorDate))
}
