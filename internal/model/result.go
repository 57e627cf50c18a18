package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// PipelineStatus は収集済み記事の下流パイプラインにおける状態を表す。
// 収集エンジン自身は作成時にpendingを設定するのみで、以降の遷移は
// 外部のスクレイパー/NLPステージがAPI経由で書き込む。
type PipelineStatus string

const (
	// PipelineStatusPending はスクレイピング待ち。
	PipelineStatusPending PipelineStatus = "pending"
	// PipelineStatusScrapedOK は本文取得に成功した状態。
	PipelineStatusScrapedOK PipelineStatus = "scraped_ok"
	// PipelineStatusUnscraped は本文取得に失敗した状態。
	PipelineStatusUnscraped PipelineStatus = "unscraped"
	// PipelineStatusProcessedOK はNLP処理まで完了した状態。
	PipelineStatusProcessedOK PipelineStatus = "processed_ok"
	// PipelineStatusUnprocessed はNLP処理に失敗した状態。
	PipelineStatusUnprocessed PipelineStatus = "unprocessed"
)

// Valid はPipelineStatusが定義済みの値かを返す。
func (s PipelineStatus) Valid() bool {
	switch s {
	case PipelineStatusPending, PipelineStatusScrapedOK, PipelineStatusUnscraped,
		PipelineStatusProcessedOK, PipelineStatusUnprocessed:
		return true
	}
	return false
}

// ResultItem は検索で発見された記事1件を表す。
// IDは正規化URLのSHA-256ハッシュであり、同一URLの再発見は
// 条件付き作成により黙って無視される。
type ResultItem struct {
	ID             string
	RunID          string
	Subject        Subject
	Link           string
	DisplayLink    string
	Title          string
	Snippet        string
	HTMLSnippet    string
	PageMetadata   []byte // 検索APIのpagemapをそのままJSONで保持
	Provenance     string
	PipelineStatus PipelineStatus
	DiscoveredAt   time.Time
}

// ResultID は正規化済みURLから重複排除キーを導出する。
func ResultID(normalizedURL string) string {
	sum := sha256.Sum256([]byte(normalizedURL))
	return hex.EncodeToString(sum[:])
}
