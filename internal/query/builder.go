// Package query は検索語セットから検索APIに渡すクエリ文字列を組み立てる。
package query

import (
	"strings"

	"github.com/hitoshi/brandwatch/internal/model"
)

// Build は検索語セットからクエリ文字列を組み立てる。
// 包含語とその同義語をダブルクォートで括ってORで連結し、
// 全体を括弧で囲んだ後、除外語を-付きで後置する。
// 例: ("BrandA" OR "brand-a" OR "ブランドA") -求人 -"press release"
// 包含語が1つも無い場合はINVALID_TERM_SETエラーを返す。
func Build(ts model.TermSet) (string, error) {
	var quoted []string
	for _, term := range ts.Included {
		if v := strings.TrimSpace(term.Value); v != "" {
			quoted = append(quoted, quote(v))
		}
		for _, syn := range term.Synonyms {
			if s := strings.TrimSpace(syn); s != "" {
				quoted = append(quoted, quote(s))
			}
		}
	}
	if len(quoted) == 0 {
		return "", model.NewInvalidTermSetError(ts.Subject)
	}

	var b strings.Builder
	b.WriteString("(")
	b.WriteString(strings.Join(quoted, " OR "))
	b.WriteString(")")

	for _, excl := range ts.Excluded {
		e := strings.TrimSpace(excl)
		if e == "" {
			continue
		}
		b.WriteString(" -")
		// 空白を含む除外語はフレーズとして括る
		if strings.ContainsAny(e, " \t") {
			b.WriteString(quote(e))
		} else {
			b.WriteString(e)
		}
	}

	return b.String(), nil
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, "") + `"`
}
