package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestScope(t *testing.T) {
	tests := []struct {
		name  string
		scope string
	}{
		{"basic scope", "transport"},
		{"nested scope", "auth.devicecode"},
		{"empty scope", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Scope(tt.scope)
			assert.Equal(t, "scope", f.Key)
			assert.Equal(t, tt.scope, f.String)
		})
	}
}

func TestError(t *testing.T) {
	err := errors.New("something went wrong")
	f := Error(err)
	assert.Equal(t, "error", f.Key)
	assert.Equal(t, err, f.Interface)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}

func TestLevel(t *testing.T) {
	tests := []struct {
		env  string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.env)
			assert.Equal(t, tt.want, Level())
		})
	}
}

func TestNew_DebugLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GO_ENV", "development")

	l := New()
	require.NotNil(t, l)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_DefaultLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("GO_ENV", "")

	l := New()
	require.NotNil(t, l)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}
