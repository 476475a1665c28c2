// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logutil

import (
	"context"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/lni/goutils/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLogConfigLevels(t *testing.T) {
	tests := []struct {
		level, stacktrace string
		want, wantStack   zapcore.Level
	}{
		{level: "debug", want: zapcore.DebugLevel, wantStack: zapcore.FatalLevel},
		{level: "info", stacktrace: "error", want: zapcore.InfoLevel, wantStack: zapcore.ErrorLevel},
		{level: "ERROR", stacktrace: "panic", want: zapcore.ErrorLevel, wantStack: zapcore.PanicLevel},
	}
	for _, tt := range tests {
		cfg := &LogConfig{Level: tt.level, StacktraceLevel: tt.stacktrace}
		assert.Equal(t, tt.want, cfg.getLevel().Level(), tt.level)
		assert.Equal(t, tt.wantStack, cfg.getStacktraceLevel(), tt.level)
	}

	assert.Panics(t, func() { (&LogConfig{Level: "loud"}).getLevel() })
	assert.Panics(t, func() { (&LogConfig{StacktraceLevel: "loud"}).getStacktraceLevel() })
}

func TestLoggerEncoder(t *testing.T) {
	entry := zapcore.Entry{Level: zapcore.InfoLevel, Message: "sealed"}
	fields := []zapcore.Field{zap.Int("rows", 3)}

	buf, err := getLoggerEncoder("json").EncodeEntry(entry, fields)
	require.NoError(t, err)
	require.Contains(t, buf.String(), `"msg":"sealed"`)
	require.Contains(t, buf.String(), `"rows":3`)

	buf, err = getLoggerEncoder("console").EncodeEntry(entry, fields)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "INFO\tsealed")

	require.Panics(t, func() { getLoggerEncoder("xml") })
}

func TestSetupMOLoggerConsole(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer SetupMOLogger(getGlobalLogConfig())

	conf := &LogConfig{Level: "warn", Format: "console"}
	SetupMOLogger(conf)
	require.Same(t, conf, getGlobalLogConfig())
	require.False(t, GetGlobalLogger().Core().Enabled(zapcore.InfoLevel))
	require.True(t, GetGlobalLogger().Core().Enabled(zapcore.WarnLevel))
	Infof("dropped %d", 1)
	Warnf("kept %d", 2)
}

func TestSetupMOLoggerRejectsDirectory(t *testing.T) {
	defer SetupMOLogger(getGlobalLogConfig())
	require.Panics(t, func() {
		SetupMOLogger(&LogConfig{Level: "info", Format: "json", Filename: t.TempDir()})
	})
}

// lumberjack keeps a mill goroutine per file logger, so no leaktest here.
func TestQueryIDField(t *testing.T) {
	defer SetupMOLogger(getGlobalLogConfig())
	filename := path.Join(t.TempDir(), "join.log")

	SetupMOLogger(&LogConfig{Level: "debug", Format: "json", Filename: filename, MaxSize: 1})
	ctx := WithQueryID(context.Background(), "q-1")
	require.Equal(t, "q-1", QueryID(ctx))
	require.Equal(t, "", QueryID(context.Background()))
	GetGlobalLogger().WithOptions(ContextFields()(ctx)).Info("probe done")
	require.NoError(t, GetGlobalLogger().Sync())

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	require.Contains(t, string(data), `"query":"q-1"`)

	SetupMOLogger(&LogConfig{Level: "debug", Format: "json", Filename: filename, MaxSize: 1, DisableStore: true})
	GetGlobalLogger().WithOptions(ContextFields()(ctx)).Info("undecorated")
	require.NoError(t, GetGlobalLogger().Sync())
	data, err = os.ReadFile(filename)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], "undecorated")
	require.NotContains(t, lines[1], "q-1")
}
