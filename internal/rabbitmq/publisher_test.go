package rabbitmq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewPublisherFallsBackToNoop(t *testing.T) {
	p := NewPublisher("", "messenger.events", zap.NewNop())

	assert.Equal(t, "noop", PublisherMode(p))
	assert.Equal(t, "empty amqp url", PublisherNoopReason(p))
	require.NoError(t, p.Publish(context.Background(), "messages.created", map[string]int{"id": 1}, nil))
	require.NoError(t, p.Close())
}

func TestPublisherModeUnknown(t *testing.T) {
	assert.Equal(t, "unknown", PublisherMode(nil))
	assert.Equal(t, "", PublisherNoopReason(nil))
}
