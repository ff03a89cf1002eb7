package temporal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved() (*ZapLoggerAdapter, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewZapLoggerAdapter(zap.New(core)), logs
}

func TestZapLoggerAdapter_Levels(t *testing.T) {
	l, logs := newObserved()

	l.Debug("d", "WorkflowID", "reduce-balance-1")
	l.Info("i")
	l.Warn("w")
	l.Error("e", "Error", errors.New("boom"))

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "reduce-balance-1", entries[0].ContextMap()["WorkflowID"])
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "boom", entries[3].ContextMap()["Error"])
}

func TestZapLoggerAdapter_With(t *testing.T) {
	l, logs := newObserved()

	l.With("Namespace", "default").Info("started", "Attempt", 2)

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "default", ctx["Namespace"])
	assert.EqualValues(t, 2, ctx["Attempt"])
}

func TestFields(t *testing.T) {
	tests := []struct {
		name    string
		keyvals []interface{}
		want    map[string]interface{}
	}{
		{name: "empty", keyvals: nil, want: map[string]interface{}{}},
		{name: "pairs", keyvals: []interface{}{"a", "x", "b", true}, want: map[string]interface{}{"a": "x", "b": true}},
		{name: "non-string key", keyvals: []interface{}{7, "x"}, want: map[string]interface{}{"7": "x"}},
		{name: "dangling key", keyvals: []interface{}{"a", "x", "b"}, want: map[string]interface{}{"a": "x", "b": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := zapcore.NewMapObjectEncoder()
			for _, f := range fields(tt.keyvals) {
				f.AddTo(enc)
			}
			assert.Equal(t, tt.want, enc.Fields)
		})
	}
}
