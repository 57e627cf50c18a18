package search

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*GoogleClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewGoogleClient("test-key", "test-cx", 5*time.Second, 3, time.Millisecond, testLogger())
	client.baseURL = srv.URL
	return client, srv
}

const sampleResponse = `{
	"items": [
		{
			"title": "BrandA の新製品",
			"link": "https://example.com/article",
			"displayLink": "example.com",
			"snippet": "BrandA が新製品を発表",
			"htmlSnippet": "<b>BrandA</b> が新製品を発表",
			"pagemap": {"cse_image": [{"src": "https://example.com/img.png"}]}
		}
	]
}`

func TestGoogleClient_Search_SendsExpectedParams(t *testing.T) {
	var gotQuery url.Values
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(sampleResponse))
	})

	page, err := client.Search(context.Background(), `("BrandA")`, Unrestricted(), 3)
	if err != nil {
		t.Fatalf("検索に失敗: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("結果件数が不正: got %d, want 1", len(page.Items))
	}

	if got := gotQuery.Get("key"); got != "test-key" {
		t.Errorf("keyが不正: got %q", got)
	}
	if got := gotQuery.Get("cx"); got != "test-cx" {
		t.Errorf("cxが不正: got %q", got)
	}
	if got := gotQuery.Get("q"); got != `("BrandA")` {
		t.Errorf("qが不正: got %q", got)
	}
	if got := gotQuery.Get("num"); got != "10" {
		t.Errorf("numが不正: got %q", got)
	}
	// 3ページ目のstartは 1 + 10*2 = 21
	if got := gotQuery.Get("start"); got != "21" {
		t.Errorf("startが不正: got %q, want 21", got)
	}
	if gotQuery.Get("dateRestrict") != "" || gotQuery.Get("sort") != "" {
		t.Error("日付制限なしのウィンドウで日付パラメータが送られた")
	}

	item := page.Items[0]
	if item.Link != "https://example.com/article" {
		t.Errorf("linkが不正: got %q", item.Link)
	}
	if item.HTMLSnippet != "<b>BrandA</b> が新製品を発表" {
		t.Errorf("htmlSnippetが不正: got %q", item.HTMLSnippet)
	}
	if len(item.PageMap) == 0 {
		t.Error("pagemapが取り込まれていない")
	}
}

func TestGoogleClient_Search_LastDayUsesDateRestrict(t *testing.T) {
	var gotQuery url.Values
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"items": []}`))
	})

	if _, err := client.Search(context.Background(), "q", LastDay(), 1); err != nil {
		t.Fatalf("検索に失敗: %v", err)
	}
	if got := gotQuery.Get("dateRestrict"); got != "d1" {
		t.Errorf("dateRestrictが不正: got %q, want d1", got)
	}
	if gotQuery.Get("sort") != "" {
		t.Error("直近24時間のウィンドウでsortが送られた")
	}
}

func TestGoogleClient_Search_DayRangeUsesSortParam(t *testing.T) {
	var gotQuery url.Values
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`{"items": []}`))
	})

	day := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	if _, err := client.Search(context.Background(), "q", DayRange(day, day), 1); err != nil {
		t.Fatalf("検索に失敗: %v", err)
	}
	if got := gotQuery.Get("sort"); got != "date:r:20250110:20250110" {
		t.Errorf("sortが不正: got %q, want date:r:20250110:20250110", got)
	}
	if gotQuery.Get("dateRestrict") != "" {
		t.Error("日付範囲のウィンドウでdateRestrictが送られた")
	}
}

func TestGoogleClient_Search_RetriesOn429ThenSucceeds(t *testing.T) {
	attempts := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(sampleResponse))
	})

	page, err := client.Search(context.Background(), "q", Unrestricted(), 1)
	if err != nil {
		t.Fatalf("リトライ後の検索に失敗: %v", err)
	}
	if attempts != 3 {
		t.Errorf("試行回数が不正: got %d, want 3", attempts)
	}
	if len(page.Items) != 1 {
		t.Errorf("結果件数が不正: got %d, want 1", len(page.Items))
	}
}

func TestGoogleClient_Search_FailsAfterMaxRetries(t *testing.T) {
	attempts := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.Search(context.Background(), "q", Unrestricted(), 1)
	if err == nil {
		t.Fatal("リトライ上限到達でエラーが返らなかった")
	}
	// 初回 + リトライ3回
	if attempts != 4 {
		t.Errorf("試行回数が不正: got %d, want 4", attempts)
	}
}

func TestGoogleClient_Search_DoesNotRetryOn403(t *testing.T) {
	attempts := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.Search(context.Background(), "q", Unrestricted(), 1)
	if err == nil {
		t.Fatal("403でエラーが返らなかった")
	}
	if attempts != 1 {
		t.Errorf("403がリトライされた: attempts=%d", attempts)
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		code int
		want RequestResult
	}{
		{200, RequestResultOK},
		{429, RequestResultRetry},
		{500, RequestResultRetry},
		{502, RequestResultRetry},
		{503, RequestResultRetry},
		{504, RequestResultRetry},
		{400, RequestResultFail},
		{403, RequestResultFail},
		{404, RequestResultFail},
	}
	for _, tt := range tests {
		if got := ClassifyHTTPStatus(tt.code); got != tt.want {
			t.Errorf("ClassifyHTTPStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestCalculateBackoff(t *testing.T) {
	initial := 500 * time.Millisecond
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
	}
	for _, tt := range tests {
		if got := CalculateBackoff(initial, tt.attempt); got != tt.want {
			t.Errorf("CalculateBackoff(%v, %d) = %v, want %v", initial, tt.attempt, got, tt.want)
		}
	}

	// 上限で頭打ちになること
	if got := CalculateBackoff(initial, 20); got != maxRetryBackoff {
		t.Errorf("バックオフが上限で頭打ちになっていない: got %v", got)
	}
}
