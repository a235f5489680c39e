package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(NotificationsTotal.WithLabelValues("telegram", "error"))
	IncNotification("telegram", errors.New("boom"))
	if got := testutil.ToFloat64(NotificationsTotal.WithLabelValues("telegram", "error")); got != before+1 {
		t.Fatalf("ожидали %v, получили %v", before+1, got)
	}

	before = testutil.ToFloat64(NetworkRequestTotal.WithLabelValues("unknown", "unknown", "unknown", "success"))
	ObserveNetworkRequest("", "", "", time.Now(), nil)
	if got := testutil.ToFloat64(NetworkRequestTotal.WithLabelValues("unknown", "unknown", "unknown", "success")); got != before+1 {
		t.Fatalf("пустые метки заменяются на unknown")
	}
}

func TestMustRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegister(reg)
	IncMessage("new")
	if n, err := testutil.GatherAndCount(reg, "radar_messages_total"); err != nil || n == 0 {
		t.Fatalf("метрика не собрана: %d %v", n, err)
	}
}
