package infra

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ── Store ──

func TestStorePutGet(t *testing.T) {
	s := NewStore[int](0)
	s.Put("a", 1)
	s.Put("b", 2)

	v, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = s.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b"}, s.Keys())

	s.Delete("a")
	_, ok = s.Get("a")
	assert.False(t, ok)
}

func TestStoreExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStore[string](time.Hour)
	s.now = func() time.Time { return now }

	s.Put("run", "models")
	_, ok := s.Get("run")
	require.True(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = s.Get("run")
	assert.False(t, ok)
	assert.Empty(t, s.Keys())
	assert.Equal(t, 1, s.Cleanup())
}

// ── Logger ──

func TestNewLogger(t *testing.T) {
	log, err := NewLogger(LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.Equal(t, "warn", log.GetLevel().String())

	_, err = NewLogger(LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	log = Component(log.Output(&buf), "scorer")
	log.Info().Msg("hello")

	assert.Contains(t, buf.String(), `"component":"scorer"`)
}

// ── Metrics ──

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(MetricsConfig{Registry: reg})
	require.NoError(t, err)

	m.ObserveFit("default", OutcomeFallback, 10*time.Millisecond)
	m.ObserveFit("default", OutcomeFallback, 5*time.Millisecond)
	m.ObserveAssessment("HIGH")
	m.ObserveFallback("upgrade")
	m.ObserveSkippedSplit()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.fits.WithLabelValues("default", OutcomeFallback)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assessments.WithLabelValues("HIGH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbackUses.WithLabelValues("upgrade")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.backtestSkips))

	// Same registry twice collides.
	_, err = NewMetrics(MetricsConfig{Registry: reg})
	assert.Error(t, err)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFit("upgrade", OutcomeFitted, time.Second)
		m.ObserveAssessment("LOW")
		m.ObserveFallback("upgrade")
		m.ObserveSkippedSplit()
	})
}
