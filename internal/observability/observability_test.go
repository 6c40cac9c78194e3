package observability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sector-mail-desk/internal/config"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			matched := 0
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] == pair.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestPipelineCounters(t *testing.T) {
	m := NewMetrics()
	m.MessagesSeen("CHR", 3)
	m.MessagesSeen("CHR", 0)
	m.TicketCreated("CHR")
	m.TicketCreated("CHR")
	m.SweepDeleted("GMS", "duplicate", 2)
	m.ReplyFailed("rma")
	m.ObserveRun(1500 * time.Millisecond)

	assert.Equal(t, 3.0, counterValue(t, m, "ingest_messages_seen_total", map[string]string{"sector": "CHR"}))
	assert.Equal(t, 2.0, counterValue(t, m, "ingest_tickets_created_total", map[string]string{"sector": "CHR"}))
	assert.Equal(t, 2.0, counterValue(t, m, "ingest_sweep_deletions_total", map[string]string{"sector": "GMS", "reason": "duplicate"}))
	assert.Equal(t, 1.0, counterValue(t, m, "reply_failures_total", map[string]string{"case": "rma"}))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TicketCreated("CHR")
		m.RecordRequest("/x", "GET", 200, time.Millisecond)
		m.RecordError("/x", "GET", "NOT_FOUND")
		m.ObserveRun(time.Second)
	})
	assert.Nil(t, m.Registry())
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "chatty", Output: "stderr"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(0))
	assert.False(t, logger.Core().Enabled(-1))
}

func TestNewLoggerStampsServiceName(t *testing.T) {
	for _, tc := range []struct {
		name   string
		format string
	}{
		{name: "json", format: "json"},
		{name: "console", format: "console"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "desk.log")
			logger, err := NewLogger(config.LoggerConfig{
				Level:   "debug",
				Output:  path,
				Format:  tc.format,
				Service: "sector-mail-desk",
			})
			require.NoError(t, err)

			logger.Debug("mailbox polled")
			require.NoError(t, logger.Sync())

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			line := strings.TrimSpace(string(raw))
			require.NotEmpty(t, line)
			assert.Contains(t, line, "mailbox polled")
			assert.Contains(t, line, "sector-mail-desk")

			if tc.format == "json" {
				var entry map[string]any
				require.NoError(t, json.Unmarshal([]byte(line), &entry))
				assert.Equal(t, "debug", entry["level"])
				assert.Equal(t, "sector-mail-desk", entry["service"])
				assert.NotEmpty(t, entry["caller"])
			} else {
				assert.Contains(t, line, "DEBUG")
			}
		})
	}
}

func TestNewLoggerRejectsUnopenableOutput(t *testing.T) {
	_, err := NewLogger(config.LoggerConfig{Output: filepath.Join(t.TempDir(), "missing", "desk.log")})
	assert.Error(t, err)
}
