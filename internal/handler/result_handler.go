package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/brandwatch/internal/middleware"
	"github.com/hitoshi/brandwatch/internal/model"
	"github.com/hitoshi/brandwatch/internal/repository"
)

// defaultResultsPerPage は結果一覧の1回の取得件数（デフォルト）。
const defaultResultsPerPage = 50

// maxResultsPerPage は結果一覧の1回の取得件数の上限。
const maxResultsPerPage = 200

// ResultHandler は収集結果のHTTPハンドラー。
// 下流のスクレイパー/NLPステージが処理対象の引き出しと状態更新に使う。
type ResultHandler struct {
	results repository.ResultRepository
}

// NewResultHandler はResultHandlerを生成する。
func NewResultHandler(results repository.ResultRepository) *ResultHandler {
	return &ResultHandler{results: results}
}

// resultResponse は収集結果のレスポンス。
type resultResponse struct {
	ID             string    `json:"id"`
	RunID          string    `json:"run_id"`
	Subject        string    `json:"subject"`
	Link           string    `json:"link"`
	DisplayLink    string    `json:"display_link,omitempty"`
	Title          string    `json:"title"`
	Snippet        string    `json:"snippet,omitempty"`
	Provenance     string    `json:"provenance"`
	PipelineStatus string    `json:"pipeline_status"`
	DiscoveredAt   time.Time `json:"discovered_at"`
}

// resultListResponse は結果一覧のレスポンス。
type resultListResponse struct {
	Results []resultResponse `json:"results"`
	Count   int              `json:"count"`
}

// resultStatusRequest はパイプライン状態更新リクエストのボディ。
type resultStatusRequest struct {
	PipelineStatus string `json:"pipeline_status"`
}

func toResultResponse(item model.ResultItem) resultResponse {
	return resultResponse{
		ID:             item.ID,
		RunID:          item.RunID,
		Subject:        string(item.Subject),
		Link:           item.Link,
		DisplayLink:    item.DisplayLink,
		Title:          item.Title,
		Snippet:        item.Snippet,
		Provenance:     item.Provenance,
		PipelineStatus: string(item.PipelineStatus),
		DiscoveredAt:   item.DiscoveredAt,
	}
}

// ListResults はパイプライン状態で絞り込んだ結果一覧を返す。
// GET /api/results?pipeline_status=pending&limit=50
func (h *ResultHandler) ListResults(w http.ResponseWriter, r *http.Request) {
	statusStr := r.URL.Query().Get("pipeline_status")
	if statusStr == "" {
		statusStr = string(model.PipelineStatusPending)
	}
	status := model.PipelineStatus(statusStr)
	if !status.Valid() {
		middleware.WriteError(w, model.NewValidationError("pipeline_statusの値が不正です"))
		return
	}

	limit := defaultResultsPerPage
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			middleware.WriteError(w, model.NewValidationError("limitは1以上の整数で指定してください"))
			return
		}
		if n > maxResultsPerPage {
			n = maxResultsPerPage
		}
		limit = n
	}

	items, err := h.results.ListByPipelineStatus(r.Context(), status, limit)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}

	resp := resultListResponse{Results: make([]resultResponse, 0, len(items))}
	for _, item := range items {
		resp.Results = append(resp.Results, toResultResponse(item))
	}
	resp.Count = len(resp.Results)

	writeJSON(w, http.StatusOK, resp)
}

// GetResult は結果の詳細を返す。
// GET /api/results/{id}
func (h *ResultHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.results.FindByID(r.Context(), id)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if item == nil {
		middleware.WriteError(w, model.NewNotFoundError("収集結果"))
		return
	}

	writeJSON(w, http.StatusOK, toResultResponse(*item))
}

// UpdateResultStatus は結果のパイプライン状態を更新する。
// PATCH /api/results/{id}/status
func (h *ResultHandler) UpdateResultStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req resultStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, model.NewValidationError("リクエストボディの解析に失敗しました"))
		return
	}

	status := model.PipelineStatus(req.PipelineStatus)
	if !status.Valid() {
		middleware.WriteError(w, model.NewValidationError("pipeline_statusの値が不正です"))
		return
	}

	updated, err := h.results.UpdatePipelineStatus(r.Context(), id, status)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if !updated {
		middleware.WriteError(w, model.NewNotFoundError("収集結果"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":              id,
		"pipeline_status": string(status),
	})
}
