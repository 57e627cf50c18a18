package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// defaultBaseURL はGoogle Custom Search JSON APIのエンドポイント。
const defaultBaseURL = "https://www.googleapis.com/customsearch/v1"

// GoogleClient はGoogle Custom Search APIのクライアント。
// 429/5xxに対して指数バックオフ付きの有限リトライを行う。
type GoogleClient struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	cseID          string
	maxRetries     int
	initialBackoff time.Duration
	logger         *slog.Logger
}

// NewGoogleClient はGoogleClientを生成する。
func NewGoogleClient(apiKey, cseID string, timeout time.Duration, maxRetries int, initialBackoff time.Duration, logger *slog.Logger) *GoogleClient {
	return &GoogleClient{
		httpClient:     &http.Client{Timeout: timeout},
		baseURL:        defaultBaseURL,
		apiKey:         apiKey,
		cseID:          cseID,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
		logger:         logger,
	}
}

// googleResponse はAPIレスポンスのデコード用。
type googleResponse struct {
	Items []googleItem `json:"items"`
}

type googleItem struct {
	Title       string          `json:"title"`
	Link        string          `json:"link"`
	DisplayLink string          `json:"displayLink"`
	Snippet     string          `json:"snippet"`
	HTMLSnippet string          `json:"htmlSnippet"`
	PageMap     json.RawMessage `json:"pagemap"`
}

// Search は指定クエリ・時間範囲・ページの検索結果を取得する。
// リトライ上限まで429/5xxが続いた場合はエラーを返す。
func (c *GoogleClient) Search(ctx context.Context, query string, window TimeWindow, page int) (*Page, error) {
	reqURL := c.buildURL(query, window, page)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := CalculateBackoff(c.initialBackoff, attempt-1)
			c.logger.Warn("検索APIリクエストをリトライします",
				slog.Int("attempt", attempt),
				slog.Int("page", page),
				slog.String("delay", delay.String()),
			)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("リトライ待機中にコンテキストが終了しました: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		page, retryable, err := c.doRequest(ctx, reqURL)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}

	return nil, fmt.Errorf("検索APIリクエストがリトライ上限（%d回）に達しました: %w", c.maxRetries, lastErr)
}

// doRequest は1回分のHTTPリクエストを実行する。
// 2番目の戻り値はリトライ可能な失敗かどうかを示す。
func (c *GoogleClient) doRequest(ctx context.Context, reqURL string) (*Page, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("リクエスト作成に失敗しました: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// ネットワークエラーは一時的な失敗として扱う
		return nil, true, fmt.Errorf("HTTPリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	switch ClassifyHTTPStatus(resp.StatusCode) {
	case RequestResultRetry:
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("検索APIが一時的なエラーを返しました: status=%d", resp.StatusCode)
	case RequestResultFail:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, false, fmt.Errorf("検索APIがエラーを返しました: status=%d body=%s", resp.StatusCode, string(body))
	}

	var decoded googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, false, fmt.Errorf("レスポンスのデコードに失敗しました: %w", err)
	}

	result := &Page{}
	for _, item := range decoded.Items {
		result.Items = append(result.Items, Item{
			Title:       item.Title,
			Link:        item.Link,
			DisplayLink: item.DisplayLink,
			Snippet:     item.Snippet,
			HTMLSnippet: item.HTMLSnippet,
			PageMap:     item.PageMap,
		})
	}
	return result, false, nil
}

// buildURL は検索APIのリクエストURLを組み立てる。
// 直近24時間はdateRestrict=d1、日付範囲はsort=date:r:YYYYMMDD:YYYYMMDDで指定する。
func (c *GoogleClient) buildURL(query string, window TimeWindow, page int) string {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.cseID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(PageSize))
	params.Set("start", strconv.Itoa(1+PageSize*(page-1)))

	switch window.Kind {
	case WindowLastDay:
		params.Set("dateRestrict", "d1")
	case WindowDayRange:
		params.Set("sort", fmt.Sprintf("date:r:%s:%s",
			window.Start.Format("20060102"), window.End.Format("20060102")))
	}

	return c.baseURL + "?" + params.Encode()
}

// compile-time interface check
var _ Provider = (*GoogleClient)(nil)
