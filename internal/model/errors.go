package model

import "fmt"

// ErrorCategory はエラーの分類を表す。
type ErrorCategory string

const (
	// CategoryValidation は入力検証エラー。
	CategoryValidation ErrorCategory = "validation"
	// CategoryConflict は状態の競合（実行中の重複起動など）。
	CategoryConflict ErrorCategory = "conflict"
	// CategoryUpstream は検索APIとの通信失敗。
	CategoryUpstream ErrorCategory = "upstream"
	// CategoryStorage は永続化層の書き込み失敗。
	CategoryStorage ErrorCategory = "storage"
	// CategoryNotFound は対象リソースの不在。
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryInternal はその他の内部エラー。
	CategoryInternal ErrorCategory = "internal"
)

// APIError はHTTP境界まで伝播するエラーを表す。
// Actionはクライアントが取るべき対処の説明。
type APIError struct {
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Category ErrorCategory `json:"category"`
	Action   string        `json:"action,omitempty"`
	wrapped  error
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap はラップされた元エラーを返す。
func (e *APIError) Unwrap() error {
	return e.wrapped
}

// NewInvalidTermSetError は検索語セットが空・未定義の場合のエラーを返す。
// クォータ消費前に検出され、実行は開始されない。
func NewInvalidTermSetError(subject Subject) *APIError {
	return &APIError{
		Code:     "INVALID_TERM_SET",
		Message:  fmt.Sprintf("検索語セットが未定義または空です: %s", subject),
		Category: CategoryValidation,
		Action:   "検索語セットを登録してから再実行してください",
	}
}

// NewDuplicateInvocationError は同一モードの収集が実行中の場合のエラーを返す。
func NewDuplicateInvocationError(mode Mode) *APIError {
	return &APIError{
		Code:     "DUPLICATE_INVOCATION",
		Message:  fmt.Sprintf("同一モードの収集が実行中です: %s", mode),
		Category: CategoryConflict,
		Action:   "実行中の収集が完了してから再実行してください",
	}
}

// NewUpstreamRequestError は検索APIへのリクエストがリトライ上限まで
// 失敗した場合のエラーを返す。
func NewUpstreamRequestError(err error) *APIError {
	return &APIError{
		Code:     "UPSTREAM_REQUEST_FAILURE",
		Message:  "検索APIへのリクエストに失敗しました",
		Category: CategoryUpstream,
		Action:   "時間をおいて再実行してください",
		wrapped:  err,
	}
}

// NewStoreWriteError は結果・台帳の書き込み失敗を表すエラーを返す。
func NewStoreWriteError(err error) *APIError {
	return &APIError{
		Code:     "STORE_WRITE_FAILURE",
		Message:  "収集結果の保存に失敗しました",
		Category: CategoryStorage,
		wrapped:  err,
	}
}

// NewValidationError は汎用の入力検証エラーを返す。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     "VALIDATION_ERROR",
		Message:  message,
		Category: CategoryValidation,
	}
}

// NewNotFoundError は対象リソースが存在しない場合のエラーを返す。
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:     "NOT_FOUND",
		Message:  fmt.Sprintf("%sが見つかりません", resource),
		Category: CategoryNotFound,
	}
}

// NewInternalError は内部エラーを返す。
func NewInternalError(err error) *APIError {
	return &APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました",
		Category: CategoryInternal,
		wrapped:  err,
	}
}
