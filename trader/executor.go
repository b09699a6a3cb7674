// Package trader turns open/close decisions into confirmed on-chain swaps.
// Route construction is delegated to the Jupiter API; this package signs,
// submits and waits for a terminal outcome, exactly once per decision.
package trader

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/AlekSi/pointer"
	ag_binary "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"github.com/franco-bianco/solcopy-go/jupiter"
	"github.com/franco-bianco/solcopy-go/position"
	"github.com/franco-bianco/solcopy-go/swap"
)

type Config struct {
	SlippageBps         int
	PriorityFeeLamports uint64
	ConfirmTimeout      time.Duration
}

type Executor struct {
	client *rpc.Client
	jup    *jupiter.Client
	wallet solana.PrivateKey
	cfg    Config
	log    *logrus.Logger
}

func NewExecutor(client *rpc.Client, jup *jupiter.Client, wallet solana.PrivateKey, cfg Config, log *logrus.Logger) *Executor {
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	if log == nil {
		log = logrus.New()
	}
	return &Executor{client: client, jup: jup, wallet: wallet, cfg: cfg, log: log}
}

// Swap quotes, builds, signs, submits and confirms one swap. A confirmation
// timeout is a failure: uncertain on-chain state must never be treated as
// success and re-submitted by a caller.
func (e *Executor) Swap(ctx context.Context, venue swap.Venue, pool *swap.PoolInfo, mintIn, mintOut solana.PublicKey, amountIn uint64) (position.ExecResult, error) {
	quote, err := e.jup.GetQuote(ctx, mintIn.String(), mintOut.String(), amountIn, e.cfg.SlippageBps)
	if err != nil {
		return position.ExecResult{}, fmt.Errorf("quote %s -> %s: %w", mintIn, mintOut, err)
	}
	quotedOut, err := quote.OutAmountBase()
	if err != nil {
		return position.ExecResult{}, fmt.Errorf("quote out amount: %w", err)
	}

	encoded, err := e.jup.BuildSwapTransaction(ctx, quote, e.wallet.PublicKey().String(), e.cfg.PriorityFeeLamports)
	if err != nil {
		return position.ExecResult{}, fmt.Errorf("build swap: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return position.ExecResult{}, fmt.Errorf("decode swap transaction: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(ag_binary.NewBinDecoder(raw))
	if err != nil {
		return position.ExecResult{}, fmt.Errorf("deserialize swap transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(e.wallet.PublicKey()) {
			return &e.wallet
		}
		return nil
	}); err != nil {
		return position.ExecResult{}, fmt.Errorf("sign swap transaction: %w", err)
	}

	serialized, err := tx.MarshalBinary()
	if err != nil {
		return position.ExecResult{}, fmt.Errorf("serialize swap transaction: %w", err)
	}

	sig, err := e.client.SendRawTransactionWithOpts(ctx, serialized, rpc.TransactionOpts{
		SkipPreflight: true,
		MaxRetries:    pointer.ToUint(5),
	})
	if err != nil {
		return position.ExecResult{}, fmt.Errorf("send swap transaction: %w", err)
	}
	e.log.Infof("swap submitted: %s (%s, %d in)", sig, venue, amountIn)

	if err := e.confirm(ctx, sig); err != nil {
		return position.ExecResult{}, err
	}
	return position.ExecResult{Signature: sig, AmountOut: quotedOut}, nil
}

// confirm polls signature status until the transaction confirms, errors, or
// the deadline passes.
func (e *Executor) confirm(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation of %s timed out: %w", sig, ctx.Err())
		case <-ticker.C:
			res, err := e.client.GetSignatureStatuses(ctx, true, sig)
			if err != nil || len(res.Value) == 0 || res.Value[0] == nil {
				continue
			}
			status := res.Value[0]
			if status.Err != nil {
				return fmt.Errorf("swap %s failed on chain: %v", sig, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}
