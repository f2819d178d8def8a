package postprocess

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "  Привіт  ", "Привіт"},
		{"thinking block", "<think>pick a tone</think>\nRefined Translation: 안녕", "Refined Translation: 안녕"},
		{"mixed case tag", "<Reasoning>x</Reasoning>ok", "ok"},
		{"truncated thinking", "Score: 8/10\n<thinking>and then", "Score: 8/10"},
		{"preamble", "Sure, here is the refined translation:\n안녕하세요", "안녕하세요"},
		{"preamble same line", "Here's my evaluation: solid.", "solid."},
		{"preamble three variants", "Here are the three translation variants:\n## Literal\nA", "## Literal\nA"},
		{"quoted single line", "“속보 헤드라인”", "속보 헤드라인"},
		{"guillemets", "«Bonjour»", "Bonjour"},
		{"inner quotes kept", "\"Hope\" returns as markets \"rally\"", "\"Hope\" returns as markets \"rally\""},
		{"inner curly quotes kept", "“Hope” meets “rally”", "“Hope” meets “rally”"},
		{"multiline keeps quotes", "\"Line one\nLine two\"", "\"Line one\nLine two\""},
		{"colon without preamble", "Faithfulness: 9/10", "Faithfulness: 9/10"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClean_Idempotent(t *testing.T) {
	in := "<think>x</think>Here is the translation:\n\"Hello\""

	once := Clean(in)
	if twice := Clean(once); twice != once {
		t.Errorf("expected idempotent result, got %q then %q", once, twice)
	}
}
