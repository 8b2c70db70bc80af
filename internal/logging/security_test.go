package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityLoggerEvent(t *testing.T) {
	var buf bytes.Buffer
	seen := map[string]int{}
	sec := NewSecurityLogger(Setup("access-service", "json", &buf), func(e string) { seen[e]++ })

	sec.Event(context.Background(), "session rejected: revoked", "sessionId", "s-1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "session rejected: revoked", rec["msg"])
	assert.Equal(t, "access-service", rec["service"])
	assert.Equal(t, true, rec["security"])
	assert.Equal(t, "s-1", rec["sessionId"])
	assert.Equal(t, 1, seen["session rejected: revoked"])
}

func TestSecurityLoggerNilIsNoop(t *testing.T) {
	var sec *SecurityLogger
	sec.Event(context.Background(), "ignored")
}
