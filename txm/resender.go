package txm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartcontractkit/chainlink-common/pkg/utils"
)

func (t *Txm) resendLoop() {
	defer t.wg.Done()

	ctx, cancel := t.stop.NewCtx()
	defer cancel()

	tick := time.After(utils.WithJitter(t.cfg.ResubmitPollPeriod))

	t.lggr.Debugw("resendLoop: started")

	for {
		select {
		case <-tick:
			start := time.Now()

			t.resendStuck(ctx)

			remaining := t.cfg.ResubmitPollPeriod - time.Since(start)
			tick = time.After(utils.WithJitter(remaining.Abs()))

		case <-t.stop:
			t.lggr.Debugw("resendLoop: stopped")
			return
		}
	}
}

func (t *Txm) resendStuck(ctx context.Context) {
	for from, stuck := range t.accountStore.GetAllStuck() {
		for _, tx := range stuck {
			if ctx.Err() != nil {
				return
			}
			t.resend(ctx, from, tx)
		}
	}
}

func (t *Txm) resend(ctx context.Context, from common.Address, tx SubmittedTx) {
	if tx.Resubmissions >= t.cfg.ResendLimit {
		t.lggr.Errorw("Giving up on stuck transaction", "transactionID", tx.TransactionID, "txHash", tx.Hash, "resubmissions", tx.Resubmissions)
		res := &Result{TransactionID: tx.TransactionID}
		t.dropped(ctx, tx.TransactionID, from, fmt.Errorf("not mined after %d resubmissions", tx.Resubmissions), res)
		t.publish(res)
		t.finish(ctx, from, tx.TransactionID)
		return
	}

	_, err := t.RetryTransaction(ctx, tx.TransactionID, tx.Raw, tx.Signer, tx.Hash)
	if err == nil || errors.Is(err, ErrRetryInProgress) {
		return
	}
	if errors.Is(err, ErrRelayerNeedsFunding) {
		// the old hash may still land, keep it stuck and count the attempt
		// against ResendLimit
		if cerr := t.accountStore.GetTxStore(from).CountResubmission(tx.TransactionID); cerr != nil {
			t.lggr.Errorw("Failed to count resubmission", "transactionID", tx.TransactionID, "err", cerr)
		}
		if t.deps.OnNeedsFunding != nil {
			t.deps.OnNeedsFunding(ctx, from)
		}
		return
	}
	t.lggr.Errorw("Failed to resubmit stuck transaction", "transactionID", tx.TransactionID, "txHash", tx.Hash, "err", err)
	t.finish(ctx, from, tx.TransactionID)
}
