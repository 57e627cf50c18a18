package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/brandwatch/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: string(apiErr.Category),
		Action:   apiErr.Action,
	})
}

// WriteError はエラーをAPIErrorとして解釈し、カテゴリに応じたステータス
// コードでレスポンスを書き込む。APIErrorでない場合は500を返し、
// 詳細はログのみに残す前提で一般的なメッセージに落とす。
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		apiErr = model.NewInternalError(err)
	}
	WriteErrorResponse(w, StatusForCategory(apiErr.Category), apiErr)
}

// StatusForCategory はエラーカテゴリをHTTPステータスコードへ対応付ける。
func StatusForCategory(category model.ErrorCategory) int {
	switch category {
	case model.CategoryValidation:
		return http.StatusBadRequest
	case model.CategoryConflict:
		return http.StatusConflict
	case model.CategoryNotFound:
		return http.StatusNotFound
	case model.CategoryUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
