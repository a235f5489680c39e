package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessagePrefersNewlines(t *testing.T) {
	text := strings.Repeat("a", 3000) + "\n\n" + strings.Repeat("b", 2000) + "\n" + strings.Repeat("c", 500)

	parts := SplitMessage(text)
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	for i, part := range parts {
		if n := len([]rune(part)); n > MessageLimit {
			t.Fatalf("часть %d длиннее лимита: %d", i, n)
		}
	}
	if parts[0] != strings.Repeat("a", 3000) {
		t.Fatalf("первая часть должна закончиться на переводе строки")
	}
	if !strings.HasPrefix(parts[1], "b") || !strings.HasSuffix(parts[1], strings.Repeat("c", 500)) {
		t.Fatalf("неверная вторая часть")
	}
}

func TestSplitMessageCases(t *testing.T) {
	cases := []struct {
		name string
		text string
		want int
	}{
		{"пусто", "   \n  ", 0},
		{"короткий", "hello world", 1},
		{"без переводов строк", strings.Repeat("я", MessageLimit*2+1), 3},
		{"ровно лимит", strings.Repeat("x", MessageLimit), 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parts := SplitMessage(tc.text)
			if len(parts) != tc.want {
				t.Fatalf("ожидали %d частей, получили %d", tc.want, len(parts))
			}
			for _, p := range parts {
				if len([]rune(p)) > MessageLimit {
					t.Fatalf("часть длиннее лимита")
				}
			}
		})
	}
}
