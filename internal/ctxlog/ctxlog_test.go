package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_ReturnsEmbeddedLogger(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := WithLogger(context.Background(), logger)

	FromContext(ctx).Info("hello")

	assert.Contains(t, buf.String(), "hello")
}

func TestFromContext_PanicsWithoutLogger(t *testing.T) {
	t.Parallel()
	require.Panics(t, func() {
		FromContext(context.Background())
	})
}
