package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"opportunity-radar/internal/domain"
)

// defaultScore: консервативная оценка, если модель вернула мусор.
const defaultScore = 3

// parseObject достаёт первый JSON-объект из ответа модели, игнорируя обёртки вроде ```json.
func parseObject(text string) (map[string]any, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return nil, fmt.Errorf("%w: в ответе нет JSON-объекта", domain.ErrMalformedAIOutput)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedAIOutput, err)
	}
	return out, nil
}

// parseYesNo распознаёт ответ классификатора по первому слову YES или NO.
// Ответ без этих слов считается отказом.
func parseYesNo(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		switch w {
		case "yes":
			return true
		case "no":
			return false
		}
	}
	return false
}

// parseScore принимает 7, "7", "7/10", "7.6" и приводит к 1..10; прочее даёт defaultScore.
func parseScore(v any) int {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case int:
		f = float64(val)
	case string:
		s := strings.TrimSpace(val)
		if idx := strings.Index(s, "/"); idx >= 0 {
			s = s[:idx]
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return defaultScore
		}
		f = parsed
	default:
		return defaultScore
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return defaultScore
	}
	n := int(math.Round(f))
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

func clip(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
