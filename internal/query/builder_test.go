package query

import (
	"errors"
	"testing"

	"github.com/hitoshi/brandwatch/internal/model"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		ts   model.TermSet
		want string
	}{
		{
			name: "単一の包含語",
			ts: model.TermSet{
				Included: []model.Term{{Value: "BrandA"}},
			},
			want: `("BrandA")`,
		},
		{
			name: "同義語はORで連結される",
			ts: model.TermSet{
				Included: []model.Term{
					{Value: "BrandA", Synonyms: []string{"brand-a", "ブランドA"}},
				},
			},
			want: `("BrandA" OR "brand-a" OR "ブランドA")`,
		},
		{
			name: "複数の包含語と除外語",
			ts: model.TermSet{
				Included: []model.Term{
					{Value: "BrandA"},
					{Value: "BrandA Pro"},
				},
				Excluded: []string{"求人", "recruiting"},
			},
			want: `("BrandA" OR "BrandA Pro") -求人 -recruiting`,
		},
		{
			name: "空白を含む除外語はフレーズとして括られる",
			ts: model.TermSet{
				Included: []model.Term{{Value: "BrandA"}},
				Excluded: []string{"press release"},
			},
			want: `("BrandA") -"press release"`,
		},
		{
			name: "空白のみの語は無視される",
			ts: model.TermSet{
				Included: []model.Term{
					{Value: "BrandA", Synonyms: []string{"  ", ""}},
					{Value: "   "},
				},
				Excluded: []string{"", "  "},
			},
			want: `("BrandA")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Build(tt.ts)
			if err != nil {
				t.Fatalf("クエリの組み立てに失敗: %v", err)
			}
			if got != tt.want {
				t.Errorf("クエリが不正:\n got  %s\n want %s", got, tt.want)
			}
		})
	}
}

func TestBuild_EmptyTermSetReturnsInvalidTermSet(t *testing.T) {
	cases := []model.TermSet{
		{Subject: model.SubjectBrand},
		{Subject: model.SubjectBrand, Included: []model.Term{{Value: ""}}},
		{Subject: model.SubjectBrand, Included: []model.Term{{Value: "  "}}},
	}
	for _, ts := range cases {
		_, err := Build(ts)
		if err == nil {
			t.Fatal("空の検索語セットでエラーが返らなかった")
		}
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("APIError以外のエラーが返った: %v", err)
		}
		if apiErr.Code != "INVALID_TERM_SET" {
			t.Errorf("エラーコードが不正: got %s, want INVALID_TERM_SET", apiErr.Code)
		}
	}
}

func TestBuild_StripsEmbeddedQuotes(t *testing.T) {
	ts := model.TermSet{
		Included: []model.Term{{Value: `Brand"A`}},
	}
	got, err := Build(ts)
	if err != nil {
		t.Fatalf("クエリの組み立てに失敗: %v", err)
	}
	if got != `("BrandA")` {
		t.Errorf("埋め込みクォートが除去されていない: got %s", got)
	}
}
