package mq

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

var ErrClosed = errors.New("mq: closed")

// Memory 进程内的 Producer + Consumer，用于 simulate 与测试
type Memory struct {
	mu     sync.Mutex
	seq    int
	subs   map[string][]chan *Message
	closed bool
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[string][]chan *Message)}
}

// Publish 投递给当前所有订阅者，订阅者缓冲满时丢弃
func (m *Memory) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.seq++
	msg := &Message{ID: strconv.Itoa(m.seq), Topic: topic, Key: key, Payload: append([]byte(nil), payload...)}
	for _, ch := range m.subs[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe 阻塞直到 ctx 取消或 Close
func (m *Memory) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	ch := make(chan *Message, 64)
	m.mu.Lock()
	m.subs[topic] = append(m.subs[topic], ch)
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			_ = handler(msg)
		}
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for _, chans := range m.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	return nil
}

func (m *Memory) subscribers(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[topic])
}
