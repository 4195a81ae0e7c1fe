package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/treestack/pkg/errors"
)

func TestTestLogger(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message")
	testLogger.Error("error message", ErrAttrKey, fmt.Errorf("boom"))

	require.NotEmpty(t, buffer.String())
	assert.True(t, testLogger.ContainsMessage("debug message"))
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0)) // JSON numbers are float64
	assert.True(t, testLogger.ContainsField(ErrAttrKey, "boom"))
	assert.Equal(t, 1, testLogger.CountMessages("warning message"))
}

func TestTestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	foldLogger := testLogger.With(ModelNameKey, "StackingRegressor", NFoldsKey, 5)
	foldLogger.Info("Fold finished", FoldKey, 2, ValMSEKey, 0.25)
	testLogger.Debug("filtered")

	assert.True(t, testLogger.ContainsField(ModelNameKey, "StackingRegressor"))
	assert.True(t, testLogger.ContainsField(FoldKey, 2.0))
	assert.True(t, testLogger.ContainsField(ValMSEKey, 0.25))
	assert.False(t, testLogger.ContainsMessage("filtered"))
	assert.False(t, testLogger.Enabled(context.Background(), LevelDebug))
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo)

	logger.Debug("hidden")
	logger.With(ModelNameKey, "Ridge").Info("fitted", SamplesKey, 10, ErrAttrKey, fmt.Errorf("x"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "fitted", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Ridge", entry[ModelNameKey])
	assert.Equal(t, 10.0, entry[SamplesKey])
	assert.Equal(t, "x", entry[ErrAttrKey])

	assert.True(t, logger.Enabled(context.Background(), LevelWarn))
	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
}

func TestZerologProviderNamedLogger(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelWarn)
	p.GetLoggerWithName("tree").Warn("degenerate split")
	assert.Contains(t, buf.String(), `"ml.component":"tree"`)

	buf.Reset()
	p.GetLogger().Info("quiet")
	assert.Empty(t, buf.String())

	p.SetLevel(LevelInfo)
	p.GetLogger().Info("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestSetupLoggerInstallsSlogProvider(t *testing.T) {
	prev := GetProvider()
	defer SetProvider(prev)

	var buf bytes.Buffer
	require.NoError(t, SetupLoggerTo(&buf, "info"))

	GetLoggerWithName("ensemble.stacking").Info("Fold finished", FoldKey, 1)
	out := buf.String()
	assert.Contains(t, out, `"message":"Fold finished"`)
	assert.Contains(t, out, `"cv.fold":1`)
	assert.Contains(t, out, `"ml.component":"ensemble.stacking"`)

	SetLevel(LevelError)
	buf.Reset()
	GetLogger().Warn("suppressed")
	assert.Empty(t, buf.String())
}

func TestErrFmtHandlerAddsErrorClassAndSource(t *testing.T) {
	prev := GetProvider()
	defer SetProvider(prev)

	var buf bytes.Buffer
	require.NoError(t, SetupLoggerTo(&buf, "info"))

	cfgErr := errors.NewValidationError("n_folds", "must be >= 2", 1)
	GetLogger().Error("Fit failed", ErrAttrKey, cfgErr)
	GetLogger().Error("Fit failed", ErrAttrKey, errors.NewDimensionError("Predict", 3, 2, 1))
	GetLogger().Info("no error")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "usage", entry[ErrorTypeKey])
	source, ok := entry[ErrSourceKey].(string)
	require.True(t, ok)
	assert.Contains(t, source, "log_test.go")

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "shape", entry[ErrorTypeKey])

	entry = nil
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &entry))
	assert.NotContains(t, entry, ErrorTypeKey)

	assert.Equal(t, "internal", ErrorClass(fmt.Errorf("plain")))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"error", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseLevel("verbose")
	assert.True(t, errors.IsUsageError(err))
}

func TestWarningsRouteThroughProvider(t *testing.T) {
	prev := GetProvider()
	defer SetProvider(prev)

	provider, buffer := NewTestLoggerProvider(LevelWarn)
	SetProvider(provider)

	errors.Warn(errors.NewUndefinedMetricWarning("r2", "constant y_true", 0))
	assert.Contains(t, buffer.String(), "'r2' is ill-defined")
	assert.Contains(t, buffer.String(), `"ml.component":"warnings"`)
}

func TestOrDefault(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	assert.Same(t, testLogger, OrDefault(testLogger, "x"))
	assert.NotNil(t, OrDefault(nil, "x"))
}
