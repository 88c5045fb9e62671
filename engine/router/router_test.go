package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caucehq/cauce/engine/lane"
	"github.com/caucehq/cauce/engine/llm"
	"github.com/caucehq/cauce/engine/state"
	"github.com/caucehq/cauce/engine/turn"
)

type fakeClassifier struct {
	raw  string
	err  error
	user string
}

func (f *fakeClassifier) CompleteJSON(_ context.Context, _, user, _ string, _ *llm.JSONSchema) (string, error) {
	f.user = user
	if f.err != nil {
		return "", f.err
	}
	return f.raw, nil
}

func testSetup(t *testing.T, c Classifier) (*Service, *turn.Turn, *state.Session) {
	t.Helper()
	lanes, err := lane.Load("")
	require.NoError(t, err)
	svc := NewService(lanes, Config{Classifier: c})
	sess := state.NewBuilder(lanes).NewSession("T1", "U1", "", "")
	tn := &turn.Turn{TenantID: "T1", WaID: "U1", MessageID: "m1", Text: "Hola", Timestamp: "2025-01-01T00:00:00Z"}
	return svc, tn, sess
}

func TestRouteSuccess(t *testing.T) {
	c := &fakeClassifier{raw: `{"lane":"commerce","intent":"start_order","confidence":0.8,"reasoning":["quiere ordenar"]}`}
	svc, tn, sess := testSetup(t, c)

	d := svc.Route(context.Background(), tn, sess)
	assert.Equal(t, lane.Commerce, d.Lane)
	assert.Equal(t, "start_order", d.Intent)
	assert.InDelta(t, 0.8, d.Confidence, 1e-9)
	assert.Equal(t, []string{"quiere ordenar"}, d.Reasons)

	assert.Contains(t, c.user, `"current_lane":"info"`, "state summary included")
	assert.Contains(t, c.user, "Hola", "user message included")
}

func TestRouteUnknownLaneSnapsToDefault(t *testing.T) {
	c := &fakeClassifier{raw: `{"lane":"unknown","intent":"greeting","confidence":0.9}`}
	svc, tn, sess := testSetup(t, c)

	d := svc.Route(context.Background(), tn, sess)
	assert.Equal(t, lane.Info, d.Lane)
	assert.Equal(t, "greeting", d.Intent)
}

func TestRouteSanitization(t *testing.T) {
	tests := []struct {
		name           string
		raw            string
		wantConfidence float64
		wantReasons    []string
		wantIntent     string
	}{
		{
			name:           "confidence clamped high",
			raw:            `{"lane":"info","intent":"x","confidence":3.5}`,
			wantConfidence: 1,
			wantIntent:     "x",
		},
		{
			name:           "confidence clamped low",
			raw:            `{"lane":"info","intent":"x","confidence":-0.5}`,
			wantConfidence: 0,
			wantIntent:     "x",
		},
		{
			name:           "reasons truncated and coerced",
			raw:            `{"lane":"info","intent":"x","confidence":0.5,"reasoning":["a",2,true,"d","e","f","g"]}`,
			wantConfidence: 0.5,
			wantReasons:    []string{"a", "2", "true", "d", "e"},
			wantIntent:     "x",
		},
		{
			name:           "empty intent defaults",
			raw:            `{"lane":"info","intent":"","confidence":0.5}`,
			wantConfidence: 0.5,
			wantIntent:     FallbackIntent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, tn, sess := testSetup(t, &fakeClassifier{raw: tt.raw})
			d := svc.Route(context.Background(), tn, sess)
			assert.InDelta(t, tt.wantConfidence, d.Confidence, 1e-9)
			assert.Equal(t, tt.wantIntent, d.Intent)
			if tt.wantReasons != nil {
				assert.Equal(t, tt.wantReasons, d.Reasons)
			}
		})
	}
}

func TestRouteFallbackOnError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantReason string
	}{
		{"timeout", fmt.Errorf("llm: %w", context.DeadlineExceeded), "router_error:Timeout"},
		{"generic", errors.New("boom"), "router_error:Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, tn, sess := testSetup(t, &fakeClassifier{err: tt.err})
			d := svc.Route(context.Background(), tn, sess)
			assert.Equal(t, lane.Info, d.Lane, "fallback targets the default lane")
			assert.Equal(t, FallbackIntent, d.Intent)
			assert.GreaterOrEqual(t, d.Confidence, 0.1)
			assert.LessOrEqual(t, d.Confidence, 0.3)
			require.NotEmpty(t, d.Reasons)
			assert.Equal(t, tt.wantReason, d.Reasons[0])
		})
	}
}

func TestRouteFallbackOnMalformedOutput(t *testing.T) {
	svc, tn, sess := testSetup(t, &fakeClassifier{raw: "not json"})
	d := svc.Route(context.Background(), tn, sess)
	assert.Equal(t, lane.Info, d.Lane)
	assert.True(t, strings.HasPrefix(d.Reasons[0], "router_error:"))
}

func TestRouteWithoutClassifier(t *testing.T) {
	svc, tn, sess := testSetup(t, nil)
	svc.classifier = nil

	d := svc.Route(context.Background(), tn, sess)
	assert.Equal(t, lane.Info, d.Lane)
	require.NotEmpty(t, d.Reasons)
	assert.True(t, strings.HasPrefix(d.Reasons[0], "config_error:"))
}

// Route must produce a configured lane and bounded confidence for every
// classifier behavior.
func TestRouteTotality(t *testing.T) {
	classifiers := []Classifier{
		&fakeClassifier{raw: `{}`},
		&fakeClassifier{raw: `[]`},
		&fakeClassifier{raw: `{"lane":"","intent":"","confidence":-9}`},
		&fakeClassifier{err: errors.New("down")},
		nil,
	}
	for i, c := range classifiers {
		svc, tn, sess := testSetup(t, c)
		if c == nil {
			svc.classifier = nil
		}
		d := svc.Route(context.Background(), tn, sess)
		lanes, _ := lane.Load("")
		assert.True(t, lanes.Has(d.Lane), "case %d: lane %q configured", i, d.Lane)
		assert.GreaterOrEqual(t, d.Confidence, 0.0, "case %d", i)
		assert.LessOrEqual(t, d.Confidence, 1.0, "case %d", i)
		assert.LessOrEqual(t, len(d.Reasons), 5, "case %d", i)
	}
}
