package search

import "time"

// RequestResult はHTTPステータスコードに基づくリクエスト結果の分類。
type RequestResult int

const (
	// RequestResultOK はリクエスト成功（200）。
	RequestResultOK RequestResult = iota
	// RequestResultRetry はリトライが必要なステータス（429/5xx）。
	RequestResultRetry
	// RequestResultFail はリトライしても回復しないステータス（429以外の4xxなど）。
	RequestResultFail
)

// maxRetryBackoff はリトライ遅延の上限。
const maxRetryBackoff = 30 * time.Second

// ClassifyHTTPStatus はHTTPステータスコードをリクエスト結果に分類する。
// 429と5xxは一時的な失敗としてリトライ対象、それ以外の4xxは
// リクエスト自体の問題なのでリトライしない。
func ClassifyHTTPStatus(statusCode int) RequestResult {
	switch {
	case statusCode == 200:
		return RequestResultOK
	case statusCode == 429:
		return RequestResultRetry
	case statusCode >= 500:
		return RequestResultRetry
	default:
		return RequestResultFail
	}
}

// CalculateBackoff はリトライ回数に基づいて指数バックオフ遅延を計算する。
// initialから2倍ずつ増加し、maxRetryBackoffで頭打ちになる。
func CalculateBackoff(initial time.Duration, attempt int) time.Duration {
	delay := initial
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return delay
}
