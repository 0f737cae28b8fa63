package service

import (
	"context"
	"encoding/json"
	"fmt"

	"wallet-flow/internal/event"
	"wallet-flow/internal/service/mq"
	"wallet-flow/internal/txflow"
	"wallet-flow/pkg/logger"
)

// Publisher 把状态转移以 event.TransactionTransitioned 发布到消息队列
type Publisher struct {
	*pump
	producer mq.Producer
	topic    string
}

func NewPublisher(producer mq.Producer, topic string, buffer int) *Publisher {
	if topic == "" {
		topic = event.TopicTransaction
	}
	p := &Publisher{producer: producer, topic: topic}
	p.pump = newPump("publisher", buffer, logger.Named("publisher"), p.publish)
	return p
}

func (p *Publisher) publish(ctx context.Context, t txflow.Transition) error {
	payload, err := json.Marshal(event.FromTransition(t))
	if err != nil {
		return fmt.Errorf("marshal transition: %w", err)
	}
	return p.producer.Publish(ctx, p.topic, t.FlowID, payload)
}
