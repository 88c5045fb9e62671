package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporterRecordsAndServes(t *testing.T) {
	e := NewExporter(DefaultConfig())

	e.RecordTurn("info", 120*time.Millisecond, true)
	e.RecordTurn("commerce", 300*time.Millisecond, false)
	e.RecordDecision("info", "llm")
	e.RecordDecision("info", "fallback")
	e.RecordBatonHop()
	e.RecordBatonStop("hop_limit")
	e.RecordStoreOp("setex", true)
	e.RecordJobRetry()
	e.SetQueueDepth(3)
	e.AddActiveWorkers(1)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	e.GetHandler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "cauce_engine_turns_total")
	assert.Contains(t, body, "cauce_engine_baton_stops_total")
	assert.Contains(t, body, `reason="hop_limit"`)
	assert.Contains(t, body, "cauce_jobs_queue_depth 3")
	assert.Contains(t, body, "cauce_router_decisions_total")
}

func TestExporterSharedRegistry(t *testing.T) {
	e := NewExporter(Config{})
	families, err := e.GetRegistry().Gather()
	require.NoError(t, err)
	assert.NotNil(t, families)
}
