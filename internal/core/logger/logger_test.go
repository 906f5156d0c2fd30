package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"account-api/internal/core/config"
)

func TestBuildJSONWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	l, cleanup := Build(Options{Level: "info", JSON: true, Out: zapcore.AddSync(&buf)})
	l.Info("user created", zap.String("user_id", "u-1"))
	l.Debug("dropped below level")
	cleanup()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "user created", entry["msg"])
	assert.Equal(t, "u-1", entry["user_id"])
	assert.Contains(t, entry, "ts")
}

func TestBuildBadLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l, cleanup := Build(Options{Level: "loud", JSON: true, Out: zapcore.AddSync(&buf)})
	l.Debug("hidden")
	l.Info("shown")
	cleanup()

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestFromConfigWritesRotatedFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.log")
	l, cleanup := FromConfig(config.Log{
		Level: "info",
		JSON:  true,
		File:  config.FileLog{Enable: true, Filename: file, MaxSizeMB: 1},
	})
	l.Info("to file")
	cleanup()

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(b), "to file")
}

func TestToWriterForwardsLines(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	w := ToWriter(zap.New(core), zapcore.WarnLevel)

	_, err := fmt.Fprintln(w, "[GIN-debug] something")
	require.NoError(t, err)

	require.Equal(t, 1, logs.Len())
	e := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, e.Level)
	assert.Equal(t, "[GIN-debug] something", e.Message)
}

func TestToStdLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	std := ToStdLogger(zap.New(core), zapcore.ErrorLevel)
	std.Print("http: TLS handshake error")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
}
