package logsvc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/trezcool/vidyalaya/core/access"
)

func TestZapLogger_Fields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := WrapZap(zap.New(core))

	logger.Warn("CorruptionDetected",
		map[string]interface{}{"studentId": "42", "authSecret": "hunter2"},
		errors.New("boom"),
		access.Principal{ID: "7", Username: "principal"},
	)

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "CorruptionDetected", entries[0].Message)
		assert.Equal(t, zap.WarnLevel, entries[0].Level)
		assert.Equal(t, "42", ctx["studentId"])
		assert.Equal(t, "[REDACTED]", ctx["authSecret"])
		assert.Equal(t, "boom", ctx["error"])
		assert.Equal(t, "principal", ctx["principal"])
		assert.Equal(t, "7", ctx["principalId"])
	}
}

func TestRollbarLogger_Prepare(t *testing.T) {
	l := RollbarLogger{zap: NewNopLogger()}
	args := l.prepare("msg", []interface{}{
		access.Principal{ID: "1"},
		map[string]interface{}{"secret": "x", "year": 2081},
	})
	assert.Equal(t, []interface{}{
		"msg",
		map[string]interface{}{"secret": "[REDACTED]", "year": 2081},
	}, args)
}
