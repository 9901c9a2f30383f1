package nearby

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/nearby/internal/domain"
)

func TestObserver_NilSafe(t *testing.T) {
	var obs *observer
	obs.observe("search", time.Now(), nil)
	obs.observe("search", time.Now(), errors.New("err"))
}

func TestObserver_Outcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observe("search", time.Now().Add(-10*time.Millisecond), nil)
	obs.observe("search", time.Now(), domain.Validationf("radius"))
	obs.observe("search", time.Now(), domain.Infrastructure("search", errors.New("down")))
	obs.observe("search", time.Now(), nil)

	for outcome, want := range map[string]float64{"ok": 2, "invalid": 1, "error": 1} {
		got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues("search", outcome))
		if got != want {
			t.Errorf("%s = %v, want %v", outcome, got, want)
		}
	}
}

func TestObserver_ReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	first.observe("apply", time.Now(), nil)
	second.observe("apply", time.Now(), nil)

	if got := testutil.ToFloat64(first.metrics.operations.WithLabelValues("apply", "ok")); got != 2 {
		t.Errorf("shared counter = %v, want 2", got)
	}
}

func TestObserver_LogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	obs, err := newObserver(logger, nil)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observe("apply", time.Now(), nil, "provider_id", "p-1")
	if buf.Len() != 0 {
		t.Errorf("success logged at info: %s", buf.String())
	}

	obs.observe("apply", time.Now(), domain.ErrProviderNotIndexed, "provider_id", "p-1")
	out := buf.String()
	for _, want := range []string{"level=WARN", "op=apply", "provider_id=p-1", "retryable=true"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}
