package tracing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-journal-go/internal/config"
)

func TestStartSpan_Disabled(t *testing.T) {
	require.NoError(t, Init(config.Tracing{Enabled: false}, nil))
	assert.False(t, Enabled())

	ctx, span := StartSpan(context.Background(), "noop")

	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
	End(span, errors.New("ignored"))
}

func TestStartSpan_ExportsOnShutdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(config.Tracing{Enabled: true, ServiceName: "journal-test"}, &buf))
	assert.True(t, Enabled())

	_, span := StartSpan(context.Background(), "journal.CreateTrade")
	assert.True(t, span.SpanContext().IsValid())
	End(span, errors.New("boom"))

	require.NoError(t, Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "journal.CreateTrade")
	assert.Contains(t, buf.String(), "journal-test")
	assert.False(t, Enabled())
}
