package log

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(newLogger(&buf, "prod"), "pipeline")
	logger.Debug().Msg("скрыто")
	if buf.Len() != 0 {
		t.Fatalf("debug не пишется вне dev")
	}
	logger.Info().Msg("запуск")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("ожидали JSON: %v", err)
	}
	if entry["component"] != "pipeline" || entry["service"] != "opportunity-radar" || entry["time"] == nil {
		t.Fatalf("неверные поля: %v", entry)
	}

	buf.Reset()
	devLogger := newLogger(&buf, "dev")
	devLogger.Debug().Msg("видно")
	if buf.Len() == 0 {
		t.Fatalf("в dev пишется debug")
	}
}
