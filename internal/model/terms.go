package model

// Term は検索語1つと、その同義語・表記ゆれのリストを表す。
type Term struct {
	Value    string
	Synonyms []string
}

// TermSet は1つの主体（ブランド/競合）に対する検索語の集合を表す。
// エンジンからは読み取り専用であり、編集は運用者の責務。
type TermSet struct {
	Subject  Subject
	Included []Term
	Excluded []string
}

// Empty は包含語が1つも無い（クエリを組み立てられない）場合にtrueを返す。
func (ts TermSet) Empty() bool {
	for _, t := range ts.Included {
		if t.Value != "" {
			return false
		}
	}
	return true
}
