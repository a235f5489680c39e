package telegram

import "strings"

// MessageLimit: максимальная длина сообщения Telegram в символах.
const MessageLimit = 4096

// SplitMessage режет текст на части не длиннее MessageLimit, по возможности по переводам строк,
// чтобы блоки уведомления не рвались посередине.
func SplitMessage(text string) []string {
	return splitRunes(strings.TrimSpace(text), MessageLimit)
}

func splitRunes(text string, limit int) []string {
	if text == "" {
		return nil
	}
	rest := []rune(text)
	var parts []string
	for len(rest) > limit {
		cut := lastNewline(rest[:limit])
		if cut <= 0 {
			cut = limit
		}
		if chunk := strings.Trim(string(rest[:cut]), "\n"); chunk != "" {
			parts = append(parts, chunk)
		}
		rest = trimLeadingNewlines(rest[cut:])
	}
	if chunk := strings.Trim(string(rest), "\n"); chunk != "" {
		parts = append(parts, chunk)
	}
	return parts
}

// lastNewline возвращает позицию сразу после последнего перевода строки или -1.
func lastNewline(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == '\n' {
			return i + 1
		}
	}
	return -1
}

func trimLeadingNewlines(rs []rune) []rune {
	for len(rs) > 0 && rs[0] == '\n' {
		rs = rs[1:]
	}
	return rs
}
