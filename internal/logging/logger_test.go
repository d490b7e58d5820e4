package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("loud"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With("component", "bus")

	l.Warn("nack", "topic", "orders")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "bus", fields["component"])
	assert.Equal(t, "orders", fields["topic"])
}

func TestAsZap(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	z := zap.New(core)

	assert.Equal(t, z.Core(), AsZap(FromZap(z)).Core())
	assert.NotNil(t, AsZap(foreign{}))
}

type foreign struct{}

func (foreign) Debug(string, ...any) {}
func (foreign) Info(string, ...any)  {}
func (foreign) Warn(string, ...any)  {}
func (foreign) Error(string, ...any) {}
func (f foreign) With(...any) Logger { return f }
