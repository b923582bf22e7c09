package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	relayer "github.com/bcnmy/bundler-sub000"
)

var _ Queue = (*Channel)(nil)

// Channel is an in-process queue. Ack is a no-op.
type Channel struct {
	ch chan Message
}

func NewChannel(size int) *Channel {
	return &Channel{ch: make(chan Message, size)}
}

func (c *Channel) Publish(ctx context.Context, req relayer.TransactionRequest, attempt int) error {
	msg := Message{ID: uuid.NewString(), Request: req, Attempt: attempt}
	select {
	case c.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("queue full, dropping request %s", req.TransactionID)
	}
}

func (c *Channel) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-c.ch:
			_ = handler(ctx, msg)
		}
	}
}

func (c *Channel) Ack(context.Context, Message) error {
	return nil
}

func (c *Channel) Len() int {
	return len(c.ch)
}
