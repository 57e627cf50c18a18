// Package security はアプリケーションのセキュリティ機能を提供する。
//
// SnippetSanitizerService は検索APIが返すサードパーティ製スニペットを
// サニタイズし、保存データ経由のXSSリスクを排除する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 検索語ハイライト用の強調タグのみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// SnippetSanitizerService は検索スニペットのサニタイズ機能のインターフェースを定義する。
// 収集結果の保存前に使用される。
type SnippetSanitizerService interface {
	// SanitizeHTML はhtmlSnippetをサニタイズして安全なHTMLを返す。
	// 検索APIがハイライトに使う強調タグ（b, strong, em, i, br）のみを通過させ、
	// script, style, iframeタグおよびon*イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeHTML(rawHTML string) string

	// SanitizeText はプレーンテキストとして扱うフィールドから
	// すべてのマークアップを除去する。
	SanitizeText(raw string) string
}

// snippetSanitizer はSnippetSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type snippetSanitizer struct {
	htmlPolicy *bluemonday.Policy
	textPolicy *bluemonday.Policy
}

// NewSnippetSanitizer はSnippetSanitizerServiceの新しいインスタンスを生成する。
// ポリシーの内容:
//   - htmlSnippet用: b, strong, em, i, br のみ許可
//   - snippet/title用: 全タグ除去（StrictPolicy）
func NewSnippetSanitizer() *snippetSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "em", "i", "br")

	return &snippetSanitizer{
		htmlPolicy: p,
		textPolicy: bluemonday.StrictPolicy(),
	}
}

// SanitizeHTML はhtmlSnippetをサニタイズして安全なHTMLを返す。
func (s *snippetSanitizer) SanitizeHTML(rawHTML string) string {
	return s.htmlPolicy.Sanitize(rawHTML)
}

// SanitizeText はプレーンテキストフィールドから全マークアップを除去する。
func (s *snippetSanitizer) SanitizeText(raw string) string {
	return strings.TrimSpace(s.textPolicy.Sanitize(raw))
}
