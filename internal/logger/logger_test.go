package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "", RequestID(context.Background()))
	assert.NotNil(t, Ctx(ctx))
	assert.NotNil(t, Ctx(context.Background()))
}

func TestSetupWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, Setup(Config{Level: "debug", Format: "json", Output: path}))
	t.Cleanup(func() { _ = Setup(DefaultConfig()) })

	l := WithComponent("test")
	l.Info().Msg("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
	assert.Contains(t, string(data), `"message":"hello"`)
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Setup(Config{Level: "loud"}))
}
