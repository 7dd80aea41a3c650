package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, RetryBackoff(1))
	assert.Equal(t, 4*time.Second, RetryBackoff(2))
	assert.Equal(t, 8*time.Second, RetryBackoff(3))
	assert.Equal(t, 64*time.Second, RetryBackoff(6))
	assert.Equal(t, 2*time.Minute, RetryBackoff(7))
	assert.Equal(t, 2*time.Minute, RetryBackoff(40))
	assert.Equal(t, 2*time.Second, RetryBackoff(0))
}

func TestJob_DecodePayload(t *testing.T) {
	type payload struct {
		TransactionID uint `json:"transaction_id"`
	}

	raw, err := json.Marshal(payload{TransactionID: 11})
	require.NoError(t, err)

	job := &Job{ID: "j1", Type: "transaction.process", Payload: raw}

	var got payload
	require.NoError(t, job.DecodePayload(&got))
	assert.Equal(t, uint(11), got.TransactionID)
}

func TestEnqueueOptions(t *testing.T) {
	opts := enqueueOptions{}
	WithDelay(5 * time.Second)(&opts)
	WithJobID("fixed-id")(&opts)

	assert.Equal(t, 5*time.Second, opts.delay)
	assert.Equal(t, "fixed-id", opts.jobID)
}

func TestQueueKeys(t *testing.T) {
	q := &Queue{name: QueueWebhooks}

	assert.Equal(t, "queue:webhooks", q.listKey())
	assert.Equal(t, "queue:webhooks:delayed", q.delayedKey())
	assert.Equal(t, "queue:webhooks:dead", q.deadKey())
	assert.Equal(t, "queue:webhooks:processing:host-0", q.processingKey("host-0"))
}
