package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json is the default format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger, err := New("info", "", &buf)
		require.NoError(t, err)

		logger.Info("hello", "entity", "tasks")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "hello", line["msg"])
		assert.Equal(t, "tasks", line["entity"])
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger, err := New("debug", "text", &buf)
		require.NoError(t, err)

		logger.Debug("visible")
		assert.True(t, strings.Contains(buf.String(), "msg=visible"))
	})

	t.Run("level filters records", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger, err := New("warn", "json", &buf)
		require.NoError(t, err)

		logger.Info("hidden")
		assert.Zero(t, buf.Len())
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		t.Parallel()

		_, err := New("loud", "json", nil)
		assert.Error(t, err)

		_, err = New("info", "xml", nil)
		assert.Error(t, err)
	})
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := ContextWithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
	assert.Equal(t, context.Background(), ContextWithLogger(context.Background(), nil))
}
