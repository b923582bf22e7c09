package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	relayer "github.com/bcnmy/bundler-sub000"
)

const payloadField = "payload"

var _ Queue = (*RedisStream)(nil)

// RedisStream delivers requests through a redis stream consumer group, so
// several nodes can share one chain's stream.
type RedisStream struct {
	lggr     logger.Logger
	client   redis.UniversalClient
	stream   string
	group    string
	consumer string
	block    time.Duration
	batch    int64
}

func StreamName(chainID uint64) string {
	return fmt.Sprintf("relayer:transactions:%d", chainID)
}

func NewRedisStream(lggr logger.Logger, client redis.UniversalClient, chainID uint64, group string) *RedisStream {
	return &RedisStream{
		lggr:     logger.Named(lggr, "RedisQueue"),
		client:   client,
		stream:   StreamName(chainID),
		group:    group,
		consumer: uuid.NewString(),
		block:    time.Second,
		batch:    16,
	}
}

func (q *RedisStream) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group %s: %w", q.group, err)
	}
	return nil
}

func (q *RedisStream) Publish(ctx context.Context, req relayer.TransactionRequest, attempt int) error {
	b, err := encode(req, attempt)
	if err != nil {
		return err
	}
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{payloadField: string(b)},
	}).Err()
}

func (q *RedisStream) Consume(ctx context.Context, handler Handler) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.batch,
			Block:    q.block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			q.lggr.Errorw("Failed to read stream", "stream", q.stream, "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(q.block):
			}
			continue
		}
		for _, s := range streams {
			for _, xmsg := range s.Messages {
				raw, ok := xmsg.Values[payloadField].(string)
				if !ok {
					q.lggr.Errorw("Dropping message without payload", "id", xmsg.ID)
					_ = q.client.XAck(ctx, q.stream, q.group, xmsg.ID).Err()
					continue
				}
				msg, err := decode(xmsg.ID, []byte(raw))
				if err != nil {
					q.lggr.Errorw("Dropping undecodable message", "id", xmsg.ID, "err", err)
					_ = q.client.XAck(ctx, q.stream, q.group, xmsg.ID).Err()
					continue
				}
				if err := handler(ctx, msg); err != nil {
					q.lggr.Errorw("Handler failed, message left pending", "id", msg.ID, "transactionID", msg.Request.TransactionID, "err", err)
				}
			}
		}
	}
}

func (q *RedisStream) Ack(ctx context.Context, msg Message) error {
	return q.client.XAck(ctx, q.stream, q.group, msg.ID).Err()
}
