package model

import (
	"errors"
	"testing"
	"time"
)

func TestDay_TruncatesToUTCMidnight(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	// JSTの8時はUTCでは前日23時。UTC基準で切り詰められること。
	in := time.Date(2025, 3, 10, 8, 30, 0, 0, jst)
	got := Day(in)
	want := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("日付粒度への切り詰めが不正: got %v, want %v", got, want)
	}
}

func TestDateKey_FormatsISODate(t *testing.T) {
	in := time.Date(2025, 3, 9, 23, 59, 59, 0, time.UTC)
	if got := DateKey(in); got != "2025-03-09" {
		t.Errorf("日付キーが不正: got %q, want %q", got, "2025-03-09")
	}
}

func TestResultID_IsDeterministicSHA256(t *testing.T) {
	a := ResultID("https://example.com/article")
	b := ResultID("https://example.com/article")
	if a != b {
		t.Error("同一URLから異なるIDが生成された")
	}
	if len(a) != 64 {
		t.Errorf("IDはSHA-256の16進表現であるべき: len=%d", len(a))
	}
	if c := ResultID("https://example.com/other"); c == a {
		t.Error("異なるURLから同一IDが生成された")
	}
}

func TestDailyQuota_Remaining(t *testing.T) {
	q := DailyQuota{RequestsUsed: 97, RequestsLimit: 100}
	if got := q.Remaining(); got != 3 {
		t.Errorf("残クォータが不正: got %d, want 3", got)
	}
	over := DailyQuota{RequestsUsed: 120, RequestsLimit: 100}
	if got := over.Remaining(); got != 0 {
		t.Errorf("超過時の残クォータは0であるべき: got %d", got)
	}
}

func TestBackfillWatermark_Done(t *testing.T) {
	floor := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		last time.Time
		want bool
	}{
		{"floorより後は未完了", floor.AddDate(0, 0, 5), false},
		{"floor当日は未完了", floor, false},
		{"floorより前で完了", floor.AddDate(0, 0, -1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := BackfillWatermark{FloorDate: floor, LastCompletedDate: tt.last}
			if got := w.Done(); got != tt.want {
				t.Errorf("Done() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTermSet_Empty(t *testing.T) {
	empty := TermSet{Subject: SubjectBrand}
	if !empty.Empty() {
		t.Error("包含語なしのセットはEmptyであるべき")
	}
	blank := TermSet{Included: []Term{{Value: ""}}}
	if !blank.Empty() {
		t.Error("空文字のみのセットはEmptyであるべき")
	}
	ok := TermSet{Included: []Term{{Value: "ブランドA"}}}
	if ok.Empty() {
		t.Error("包含語があるセットはEmptyでないべき")
	}
}

func TestAPIError_WrapsAndUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewUpstreamRequestError(cause)
	if !errors.Is(err, cause) {
		t.Error("元エラーがerrors.Isで辿れるべき")
	}
	if err.Category != CategoryUpstream {
		t.Errorf("カテゴリが不正: got %s", err.Category)
	}
	var apiErr *APIError
	if !errors.As(error(err), &apiErr) {
		t.Error("errors.AsでAPIErrorとして取り出せるべき")
	}
}

func TestNewDuplicateInvocationError_IncludesMode(t *testing.T) {
	err := NewDuplicateInvocationError(ModeContinuous)
	if err.Code != "DUPLICATE_INVOCATION" {
		t.Errorf("エラーコードが不正: got %s", err.Code)
	}
	if err.Category != CategoryConflict {
		t.Errorf("カテゴリが不正: got %s", err.Category)
	}
}

func TestMode_Valid(t *testing.T) {
	for _, m := range []Mode{ModeRelevant, ModeHistorical, ModeContinuous} {
		if !m.Valid() {
			t.Errorf("%s は有効なモードであるべき", m)
		}
	}
	if Mode("bogus").Valid() {
		t.Error("未定義のモードは無効であるべき")
	}
}

func TestPipelineStatus_Valid(t *testing.T) {
	if !PipelineStatusScrapedOK.Valid() {
		t.Error("scraped_okは有効であるべき")
	}
	if PipelineStatus("done").Valid() {
		t.Error("未定義のステータスは無効であるべき")
	}
}
