package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Topic Kafka 토픽 이름과 대응하는 dead-letter 토픽
type Topic struct {
	base string
}

func NewTopic(base string) Topic { return Topic{base: base} }

func (t Topic) Base() string { return t.base }

func (t Topic) DLQ() string { return t.base + ".dlq" }

// Event Kafka 메시지 value로 기록되는 이벤트 봉투
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Source     string          `json:"source"`
	Payload    json.RawMessage `json:"payload"`
}

// NewJSONEvent payload를 JSON으로 인코딩해 Event 생성 (id가 비어 있으면 새 uuid 발급)
func NewJSONEvent(id, eventType string, payload any) (Event, error) {
	if id == "" {
		id = uuid.NewString()
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("payload marshal: %w", err)
	}
	return Event{
		ID:         id,
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Source:     "naa-posts",
		Payload:    b,
	}, nil
}

func DecodeJSON[T any](evt Event) (T, error) {
	var out T
	if err := json.Unmarshal(evt.Payload, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("payload unmarshal: %w", err)
	}
	return out, nil
}

// Publisher 이벤트 발행 인터페이스. Publish는 전달이 확인되거나 ctx가 끝날 때까지 블록된다.
type Publisher interface {
	Publish(ctx context.Context, topic string, event Event) error
	Close()
}

// NopPublisher 브로커 설정이 없을 때 사용하는, 모든 이벤트를 버리는 발행자
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
func (NopPublisher) Close() {}

// MemoryPublisher 발행된 이벤트를 메모리에 기록 (테스트용)
type MemoryPublisher struct {
	Events []Event
	Topics []string
	Err    error

	mu sync.Mutex
}

func (m *MemoryPublisher) Publish(_ context.Context, topic string, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Topics = append(m.Topics, topic)
	m.Events = append(m.Events, event)
	return nil
}

func (m *MemoryPublisher) Close() {}
