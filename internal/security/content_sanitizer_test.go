package security

import "testing"

func TestSanitizeHTML_KeepsHighlightTags(t *testing.T) {
	s := NewSnippetSanitizer()

	in := "<b>BrandA</b> が新製品を発表 <em>速報</em>"
	got := s.SanitizeHTML(in)
	if got != in {
		t.Errorf("強調タグが保持されていない: got %q, want %q", got, in)
	}
}

func TestSanitizeHTML_RemovesDangerousMarkup(t *testing.T) {
	s := NewSnippetSanitizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "scriptタグの除去",
			in:   `<b>BrandA</b><script>alert("xss")</script>`,
			want: "<b>BrandA</b>",
		},
		{
			name: "イベント属性の除去",
			in:   `<b onmouseover="steal()">BrandA</b>`,
			want: "<b>BrandA</b>",
		},
		{
			name: "iframeの除去",
			in:   `before<iframe src="https://evil.example.com"></iframe>after`,
			want: "beforeafter",
		},
		{
			name: "aタグはスニペットでは不要なので除去",
			in:   `<a href="https://example.com">link</a>text`,
			want: "linktext",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.SanitizeHTML(tt.in); got != tt.want {
				t.Errorf("サニタイズ結果が不正: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeHTML_Idempotent(t *testing.T) {
	s := NewSnippetSanitizer()

	in := `<b>BrandA</b><script>alert(1)</script> 発表`
	once := s.SanitizeHTML(in)
	twice := s.SanitizeHTML(once)
	if once != twice {
		t.Errorf("サニタイズが冪等でない: once %q, twice %q", once, twice)
	}
}

func TestSanitizeText_StripsAllMarkup(t *testing.T) {
	s := NewSnippetSanitizer()

	in := `<b>BrandA</b> が新製品を発表`
	want := "BrandA が新製品を発表"
	if got := s.SanitizeText(in); got != want {
		t.Errorf("テキストサニタイズ結果が不正: got %q, want %q", got, want)
	}
}

func TestSanitize_EmptyInput(t *testing.T) {
	s := NewSnippetSanitizer()
	if got := s.SanitizeHTML(""); got != "" {
		t.Errorf("空入力に対して空以外が返った: %q", got)
	}
	if got := s.SanitizeText(""); got != "" {
		t.Errorf("空入力に対して空以外が返った: %q", got)
	}
}
