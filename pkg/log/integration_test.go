package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scierrors "github.com/YuminosukeSato/tsunamiml/pkg/errors"
)

func TestTestLogger_Levels(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationTransform)
	testLogger.Warn("warning message", ErrorCodeKey, ErrorImputation)
	testLogger.Error("error message", fmt.Errorf("boom"), ErrorCodeKey, ErrorMissingColumn)

	require.NotEmpty(t, buffer.String())
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		assert.True(t, testLogger.ContainsMessage(msg), msg)
	}
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField(ErrAttrKey, "boom"))
	assert.True(t, testLogger.ContainsField(ErrorCodeKey, ErrorMissingColumn))
}

func TestTestLogger_With(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	child := testLogger.With(ModelNameKey, "IntensityImputer", ComponentKey, "preprocessing")
	child.Info("fitted", ImputerGroupsKey, 3)

	assert.True(t, testLogger.ContainsField(ModelNameKey, "IntensityImputer"))
	assert.True(t, testLogger.ContainsField(ComponentKey, "preprocessing"))
	assert.True(t, testLogger.ContainsField(ImputerGroupsKey, 3.0))
}

func TestTestLogger_Enabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	assert.True(t, testLogger.Enabled(ctx, LevelInfo))
	assert.True(t, testLogger.Enabled(ctx, LevelError))
	assert.False(t, testLogger.Enabled(ctx, LevelDebug))

	testLogger.Debug("hidden")
	testLogger.Info("shown")
	assert.False(t, testLogger.ContainsMessage("hidden"))
	assert.True(t, testLogger.ContainsMessage("shown"))
}

func TestTestLoggerProvider(t *testing.T) {
	provider, buffer := NewTestLoggerProvider(LevelDebug)

	provider.GetLogger().Info("root message")
	provider.GetLoggerWithName("inference").Info("named message")

	out := buffer.String()
	assert.Contains(t, out, "root message")
	assert.Contains(t, out, "named message")
	assert.True(t, provider.Logger().ContainsField(ComponentKey, "inference"))

	provider.SetLevel(LevelError)
	provider.GetLogger().Info("suppressed")
	assert.NotContains(t, buffer.String(), "suppressed")
}

func TestTestLogger_Concurrent(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				testLogger.Info("scored", "worker", id, "n", j)
			}
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestZerologProvider_LevelsAndFields(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProviderWithWriter(&buf, slog.LevelInfo)
	logger := p.GetLoggerWithName("preprocessing").With(ModelNameKey, "IntensityImputer")

	logger.Debug("not emitted")
	logger.Info("fitted",
		ImputerGroupsKey, 2,
		ImputerGlobalMedianKey, math.NaN(),
		SamplesKey, 10,
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "fitted", entry["message"])
	assert.Equal(t, "preprocessing", entry[ComponentKey])
	assert.Equal(t, "IntensityImputer", entry[ModelNameKey])
	assert.Equal(t, 2.0, entry[ImputerGroupsKey])
	assert.Equal(t, "NaN", entry[ImputerGlobalMedianKey])

	p.SetLevel(LevelDebug)
	logger.Debug("now emitted")
	assert.Contains(t, buf.String(), "now emitted")
	assert.True(t, logger.Enabled(context.Background(), LevelDebug))
}

func TestZerologProvider_ErrorDetail(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProviderWithWriter(&buf, slog.LevelDebug)

	err := scierrors.Wrap(scierrors.NewMissingColumnError("Fit", "magnitude_Mw"), "fit imputer")
	p.GetLogger().Error("fit failed", err, OperationKey, OperationFit)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "error", entry["level"])
	assert.Contains(t, entry[ErrAttrKey], "magnitude_Mw")
	assert.Equal(t, OperationFit, entry[OperationKey])
	assert.Contains(t, entry, "detail")
}

func TestSetProvider_RoutesWarnings(t *testing.T) {
	prev := GetProvider()
	t.Cleanup(func() {
		SetProvider(prev)
		scierrors.SetZerologWarnFunc(nil)
	})

	provider, buffer := NewTestLoggerProvider(LevelDebug)
	SetProvider(provider)

	scierrors.Warn(scierrors.NewImputationWarning("maxWaterHeight", 2, 0, "global median undefined"))

	assert.Contains(t, buffer.String(), "maxWaterHeight")
	assert.True(t, provider.Logger().ContainsField(ComponentKey, "warnings"))
	assert.Same(t, provider, GetProvider())
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
	assert.Panics(t, func() { ToLogLevel("verbose") })
}

func BenchmarkZerologLogger(b *testing.B) {
	var buf bytes.Buffer
	logger := NewZerologProviderWithWriter(&buf, slog.LevelInfo).GetLogger()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Info("scored", OperationKey, OperationPredict, SamplesKey, 1)
		buf.Reset()
	}
}
