package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONEventRoundTrip(t *testing.T) {
	evt, err := NewJSONEvent("", PostCreated, PostEventPayload{PostID: "prod-1", Title: "A"})
	require.NoError(t, err)

	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, PostCreated, evt.Type)
	assert.Equal(t, "naa-posts", evt.Source)

	p, err := DecodeJSON[PostEventPayload](evt)
	require.NoError(t, err)
	assert.Equal(t, "prod-1", p.PostID)
}

func TestTopicNames(t *testing.T) {
	topic := NewTopic("naa.post.events")
	assert.Equal(t, "naa.post.events", topic.Base())
	assert.Equal(t, "naa.post.events.dlq", topic.DLQ())
}

func TestMemoryPublisher(t *testing.T) {
	m := &MemoryPublisher{}
	evt, _ := NewJSONEvent("e1", PostDeleted, nil)

	require.NoError(t, m.Publish(context.Background(), "t", evt))
	assert.Equal(t, []string{"t"}, m.Topics)
	assert.Equal(t, "e1", m.Events[0].ID)

	assert.NoError(t, NopPublisher{}.Publish(context.Background(), "t", evt))
}
