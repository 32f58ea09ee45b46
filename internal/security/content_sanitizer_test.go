package security

import "testing"

// compile-time interface check
var _ ContentSanitizerService = (*contentSanitizer)(nil)

func TestSanitizeDescription_AllowsFormattingTags(t *testing.T) {
	s := NewContentSanitizer()

	input := "<p>よく育った<strong>モンステラ</strong>です。<br>水やりは週1回。</p><ul><li>鉢付き</li></ul>"
	got := s.SanitizeDescription(input)

	if got != input {
		t.Errorf("許可タグが保持されていない:\ngot  %q\nwant %q", got, input)
	}
}

func TestSanitizeDescription_RemovesScriptTags(t *testing.T) {
	s := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "scriptタグ",
			input: `<p>hello</p><script>alert("xss")</script>`,
			want:  "<p>hello</p>",
		},
		{
			name:  "iframeタグ",
			input: `<iframe src="https://evil.example"></iframe>text`,
			want:  "text",
		},
		{
			name:  "onclickイベント属性",
			input: `<p onclick="alert(1)">click</p>`,
			want:  "<p>click</p>",
		},
		{
			name:  "aタグは許可しない",
			input: `<a href="https://example.com">link</a>`,
			want:  "link",
		},
		{
			name:  "imgタグは許可しない",
			input: `<img src="https://example.com/x.png">photo`,
			want:  "photo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.SanitizeDescription(tt.input)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeDescription_EmptyInput(t *testing.T) {
	s := NewContentSanitizer()
	if got := s.SanitizeDescription(""); got != "" {
		t.Errorf("空入力の結果が空でない: %q", got)
	}
}

func TestSanitizeDescription_Idempotent(t *testing.T) {
	s := NewContentSanitizer()

	input := `<p>text</p><script>bad()</script><em>ok</em>`
	once := s.SanitizeDescription(input)
	twice := s.SanitizeDescription(once)
	if once != twice {
		t.Errorf("冪等でない: %q -> %q", once, twice)
	}
}

func TestStripTags_RemovesAllTags(t *testing.T) {
	s := NewContentSanitizer()

	tests := []struct {
		input string
		want  string
	}{
		{"モンステラ譲ります", "モンステラ譲ります"},
		{"<b>目立つ</b>タイトル", "目立つタイトル"},
		{`<script>alert(1)</script>title`, "title"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := s.StripTags(tt.input); got != tt.want {
			t.Errorf("StripTags(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
