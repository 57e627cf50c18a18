// Package search は外部検索APIへのアクセスを提供する。
package search

import (
	"context"
	"encoding/json"
	"time"
)

// PageSize は検索APIの1ページあたりの結果件数。上流APIの仕様で固定。
const PageSize = 10

// WindowKind は検索の日付範囲の種別を表す。
type WindowKind int

const (
	// WindowUnrestricted は日付制限なし（relevant収集用）。
	WindowUnrestricted WindowKind = iota
	// WindowLastDay は直近24時間（continuous収集用）。
	WindowLastDay
	// WindowDayRange は日付範囲指定（historical収集用）。
	WindowDayRange
)

// TimeWindow は検索対象の時間範囲を表す。
type TimeWindow struct {
	Kind  WindowKind
	Start time.Time
	End   time.Time
}

// Unrestricted は日付制限なしのウィンドウを返す。
func Unrestricted() TimeWindow {
	return TimeWindow{Kind: WindowUnrestricted}
}

// LastDay は直近24時間のウィンドウを返す。
func LastDay() TimeWindow {
	return TimeWindow{Kind: WindowLastDay}
}

// DayRange は指定日付範囲（両端含む）のウィンドウを返す。
func DayRange(start, end time.Time) TimeWindow {
	return TimeWindow{Kind: WindowDayRange, Start: start, End: end}
}

// Item は検索APIが返した結果1件を表す。
type Item struct {
	Title       string
	Link        string
	DisplayLink string
	Snippet     string
	HTMLSnippet string
	PageMap     json.RawMessage
}

// Page は検索APIの1ページ分の結果を表す。
type Page struct {
	Items []Item
}

// Provider は検索APIのインターフェース。
// pageは1始まりで、1ページあたりPageSize件を返す。
// 結果が尽きた場合は空のPageを返す。
type Provider interface {
	Search(ctx context.Context, query string, window TimeWindow, page int) (*Page, error)
}
