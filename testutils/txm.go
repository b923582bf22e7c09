package testutils

import (
	"testing"
	"time"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/bcnmy/bundler-sub000/txm"
)

func WaitForInflightTxs(t *testing.T, lggr logger.Logger, txmgr *txm.Txm, timeout time.Duration) {
	start := time.Now()
	for {
		inflight := txmgr.InflightCount()
		lggr.Debugw("Inflight count", "unconfirmed", inflight)
		if inflight == 0 {
			return
		}
		if time.Since(start) > timeout {
			t.Fatalf("timed out waiting for %d inflight transactions", inflight)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
