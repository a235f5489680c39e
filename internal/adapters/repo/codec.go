package repo

import (
	"encoding/json"
	"fmt"
	"strings"

	"opportunity-radar/internal/domain"
)

// encodeFields сохраняет только заполненные поля.
func encodeFields(fields map[domain.Field]string) ([]byte, error) {
	clean := make(map[domain.Field]string, len(fields))
	for k, v := range fields {
		if v = strings.TrimSpace(v); v != "" {
			clean[k] = v
		}
	}
	data, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("кодирование полей: %w", err)
	}
	return data, nil
}

// decodeFields пропускает ключи, которых нет в схеме записи.
func decodeFields(data []byte) (map[domain.Field]string, error) {
	raw := map[string]string{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("разбор полей: %w", err)
		}
	}
	out := make(map[domain.Field]string, len(raw))
	for k, v := range raw {
		if f, ok := domain.ParseField(k); ok && v != "" {
			out[f] = v
		}
	}
	return out, nil
}

func fieldNames(fields []domain.Field) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, string(f))
	}
	return out
}

func parseFieldNames(names []string) []domain.Field {
	out := make([]domain.Field, 0, len(names))
	for _, n := range names {
		if f, ok := domain.ParseField(n); ok {
			out = append(out, f)
		}
	}
	return out
}
