package redpanda

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducer_NoBrokers(t *testing.T) {
	t.Parallel()
	_, err := NewProducer(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no seed brokers")
}

func TestCreateTopicIfNotExists_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	err := createTopicIfNotExists(ctx, nil, "", 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic name")

	err = createTopicIfNotExists(ctx, nil, "interview-events", 0, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partitions")

	err = createTopicIfNotExists(ctx, nil, "interview-events", 1, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replication factor")
}
