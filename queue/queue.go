package queue

import (
	"context"
	"encoding/json"
	"fmt"

	relayer "github.com/bcnmy/bundler-sub000"
)

type Message struct {
	ID      string
	Request relayer.TransactionRequest
	// Attempt counts how many times the request was republished.
	Attempt int
}

type Handler func(ctx context.Context, msg Message) error

//go:generate mockery --quiet --name Queue --output ../mocks/ --case=underscore
type Queue interface {
	Publish(ctx context.Context, req relayer.TransactionRequest, attempt int) error
	// Consume blocks, calling handler for every delivered message until ctx is
	// done. Messages whose handler fails stay unacknowledged.
	Consume(ctx context.Context, handler Handler) error
	Ack(ctx context.Context, msg Message) error
}

type envelope struct {
	Request relayer.TransactionRequest `json:"request"`
	Attempt int                        `json:"attempt"`
}

func encode(req relayer.TransactionRequest, attempt int) ([]byte, error) {
	b, err := json.Marshal(envelope{Request: req, Attempt: attempt})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request %s: %w", req.TransactionID, err)
	}
	return b, nil
}

func decode(id string, b []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Message{}, fmt.Errorf("failed to decode message %s: %w", id, err)
	}
	return Message{ID: id, Request: env.Request, Attempt: env.Attempt}, nil
}
