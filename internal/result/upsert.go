// Package result は検索結果の正規化・重複排除・保存を行う。
package result

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/brandwatch/internal/model"
	"github.com/hitoshi/brandwatch/internal/repository"
	"github.com/hitoshi/brandwatch/internal/search"
	"github.com/hitoshi/brandwatch/internal/security"
)

// UpsertService は検索結果をサニタイズし、URL由来のIDで
// 重複排除しながら保存する。
type UpsertService struct {
	resultRepo repository.ResultRepository
	sanitizer  security.SnippetSanitizerService
	provenance string
	logger     *slog.Logger
}

// NewUpsertService はUpsertServiceを生成する。
func NewUpsertService(
	resultRepo repository.ResultRepository,
	sanitizer security.SnippetSanitizerService,
	provenance string,
	logger *slog.Logger,
) *UpsertService {
	return &UpsertService{
		resultRepo: resultRepo,
		sanitizer:  sanitizer,
		provenance: provenance,
		logger:     logger,
	}
}

// StoreItems は1ページ分の検索結果を保存し、新規保存できた件数を返す。
// 既知URLとの重複は黙ってスキップされ、件数に含まれない。
// リンクの無い結果は保存対象外。
func (s *UpsertService) StoreItems(ctx context.Context, runID string, subject model.Subject, items []search.Item) (int, error) {
	newCount := 0
	now := time.Now().UTC()

	for _, item := range items {
		normalized := NormalizeURL(item.Link)
		if normalized == "" {
			s.logger.Warn("リンクの無い検索結果をスキップします",
				slog.String("run_id", runID),
				slog.String("title", item.Title),
			)
			continue
		}

		result := &model.ResultItem{
			ID:             model.ResultID(normalized),
			RunID:          runID,
			Subject:        subject,
			Link:           normalized,
			DisplayLink:    item.DisplayLink,
			Title:          s.sanitizer.SanitizeText(item.Title),
			Snippet:        s.sanitizer.SanitizeText(item.Snippet),
			HTMLSnippet:    s.sanitizer.SanitizeHTML(item.HTMLSnippet),
			PageMetadata:   item.PageMap,
			Provenance:     s.provenance,
			PipelineStatus: model.PipelineStatusPending,
			DiscoveredAt:   now,
		}

		created, err := s.resultRepo.CreateIfAbsent(ctx, result)
		if err != nil {
			return newCount, fmt.Errorf("検索結果の保存に失敗しました: %w", err)
		}
		if created {
			newCount++
		}
	}

	return newCount, nil
}

// NormalizeURL は重複排除キーの導出に使うURLの正規化を行う。
// スキームとホストを小文字化し、フラグメントを除去する。
// パースできないURLや相対URLは空文字を返す。
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	return u.String()
}
