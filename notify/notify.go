package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/services"
)

type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("Level(%d)", l)
	}
}

func ParseLevel(s string) (Level, error) {
	switch s {
	case "info":
		return LevelInfo, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return 0, fmt.Errorf("unknown level %q", s)
	}
}

type Event struct {
	Level         Level
	ChainID       uint64
	TransactionID string
	Message       string
	Time          time.Time
}

func NewEvent(level Level, chainID uint64, transactionID, format string, args ...any) Event {
	return Event{
		Level:         level,
		ChainID:       chainID,
		TransactionID: transactionID,
		Message:       fmt.Sprintf(format, args...),
		Time:          time.Now(),
	}
}

type Sink interface {
	Send(ctx context.Context, ev Event) error
}

type Publisher interface {
	Publish(events ...Event)
}

var _ services.Service = (*Notifier)(nil)
var _ Publisher = (*Notifier)(nil)

// Notifier drains published events to its sinks on its own goroutine. Sink
// failures are logged and never reach the publisher.
type Notifier struct {
	services.StateMachine
	lggr   logger.Logger
	sinks  []Sink
	events chan Event

	stop services.StopChan
	wg   sync.WaitGroup
}

func New(lggr logger.Logger, bufferSize int, sinks ...Sink) *Notifier {
	return &Notifier{
		lggr:   logger.Named(lggr, "Notifier"),
		sinks:  sinks,
		events: make(chan Event, bufferSize),
		stop:   make(chan struct{}),
	}
}

func (n *Notifier) Name() string {
	return n.lggr.Name()
}

func (n *Notifier) Start(context.Context) error {
	return n.StartOnce("Notifier", func() error {
		n.wg.Add(1)
		go n.run()
		return nil
	})
}

func (n *Notifier) Close() error {
	return n.StopOnce("Notifier", func() error {
		close(n.stop)
		n.wg.Wait()
		return nil
	})
}

func (n *Notifier) HealthReport() map[string]error {
	return map[string]error{n.Name(): n.Healthy()}
}

// Publish never blocks. Events are dropped when the buffer is full.
func (n *Notifier) Publish(events ...Event) {
	for _, ev := range events {
		select {
		case n.events <- ev:
		default:
			n.lggr.Warnw("Notification buffer full, dropping event", "transactionID", ev.TransactionID, "message", ev.Message)
		}
	}
}

func (n *Notifier) run() {
	defer n.wg.Done()
	ctx, cancel := n.stop.NewCtx()
	defer cancel()

	for {
		select {
		case <-n.stop:
			return
		case ev := <-n.events:
			n.dispatch(ctx, ev)
		}
	}
}

func (n *Notifier) dispatch(ctx context.Context, ev Event) {
	for _, s := range n.sinks {
		if err := s.Send(ctx, ev); err != nil {
			n.lggr.Warnw("Failed to send notification", "transactionID", ev.TransactionID, "err", err)
		}
	}
}

// LogSink writes events to the node log.
type LogSink struct {
	lggr logger.Logger
}

func NewLogSink(lggr logger.Logger) *LogSink {
	return &LogSink{lggr: logger.Named(lggr, "Notifications")}
}

func (s *LogSink) Send(_ context.Context, ev Event) error {
	kv := []any{"chainID", ev.ChainID, "transactionID", ev.TransactionID}
	switch ev.Level {
	case LevelError:
		s.lggr.Errorw(ev.Message, kv...)
	case LevelWarn:
		s.lggr.Warnw(ev.Message, kv...)
	default:
		s.lggr.Infow(ev.Message, kv...)
	}
	return nil
}
