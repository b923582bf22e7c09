package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	"github.com/smartcontractkit/chainlink-common/pkg/utils/tests"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingSink) Send(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingSink) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestNotifier(t *testing.T) {
	lggr, observed := logger.TestObserved(t, zapcore.DebugLevel)
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("webhook down")}
	n := New(lggr, 10, failing, ok)
	require.NoError(t, n.Start(tests.Context(t)))
	t.Cleanup(func() { assert.NoError(t, n.Close()) })

	n.Publish(
		NewEvent(LevelWarn, 137, "tx-1", "max retries exceeded after %d resubmissions", 6),
		NewEvent(LevelError, 137, "tx-2", "dropped"),
	)

	require.Eventually(t, func() bool { return ok.len() == 2 }, tests.WaitTimeout(t), 10*time.Millisecond)
	assert.Equal(t, "max retries exceeded after 6 resubmissions", ok.events[0].Message)
	assert.Equal(t, 2, failing.len())
	require.Eventually(t, func() bool {
		return observed.FilterMessageSnippet("Failed to send notification").Len() == 2
	}, tests.WaitTimeout(t), 10*time.Millisecond)
}

func TestNotifier_PublishNeverBlocks(t *testing.T) {
	lggr, observed := logger.TestObserved(t, zapcore.DebugLevel)
	n := New(lggr, 1)

	n.Publish(NewEvent(LevelInfo, 1, "a", "first"), NewEvent(LevelInfo, 1, "b", "second"))
	require.Equal(t, 1, observed.FilterMessageSnippet("dropping event").Len())
}

func TestSlackSink(t *testing.T) {
	var got slack.WebhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlackSink(srv.URL, LevelWarn)
	ctx := tests.Context(t)

	require.NoError(t, s.Send(ctx, NewEvent(LevelInfo, 137, "tx-0", "ignored")))
	assert.Empty(t, got.Text)

	require.NoError(t, s.Send(ctx, NewEvent(LevelError, 137, "tx-1", "dropped")))
	assert.Equal(t, "[error] chain 137, transaction tx-1: dropped", got.Text)

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer failing.Close()
	err := NewSlackSink(failing.URL, LevelInfo).Send(ctx, NewEvent(LevelError, 1, "tx", "x"))
	require.ErrorContains(t, err, "403")
}

func TestParseLevel(t *testing.T) {
	for _, l := range []Level{LevelInfo, LevelWarn, LevelError} {
		got, err := ParseLevel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}
	_, err := ParseLevel("critical")
	require.Error(t, err)
}
