package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLevelForVerbosity(t *testing.T) {
	cases := []struct {
		verbosity int
		want      zapcore.Level
	}{
		{VerbosityUser, zapcore.WarnLevel},
		{VerbosityInfo, zapcore.InfoLevel},
		{VerbosityDebug, zapcore.DebugLevel},
		{VerbosityTrace, zapcore.DebugLevel},
		{99, zapcore.DebugLevel},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LevelForVerbosity(tc.verbosity))
	}
}

func TestShouldLogTrace(t *testing.T) {
	assert.False(t, ShouldLogTrace(VerbosityDebug))
	assert.True(t, ShouldLogTrace(VerbosityTrace))
}

func TestInitializeJSON(t *testing.T) {
	require.NoError(t, Initialize(VerbosityInfo, true))
	require.NotNil(t, Logger)
	assert.NoError(t, Cleanup())
}

func TestInitializeConsole(t *testing.T) {
	require.NoError(t, Initialize(VerbosityDebug, false))
	require.NotNil(t, Logger)
}

func TestComponentLogger(t *testing.T) {
	require.NoError(t, Initialize(VerbosityUser, true))
	l := ComponentLogger("transport")
	require.NotNil(t, l)
}

func TestShouldOutput(t *testing.T) {
	assert.True(t, ShouldOutput(VerbosityUser, OutputResult))
	assert.False(t, ShouldOutput(VerbosityUser, OutputHTTP))
	assert.True(t, ShouldOutput(VerbosityDebug, OutputHTTP))
	assert.True(t, ShouldOutput(VerbosityInfo, OutputProgress))
}

func TestFieldsFromContext(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-123")
	fields := FieldsFromContext(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, FieldRunID, fields[0])
	assert.Equal(t, "run-123", fields[1])
}
