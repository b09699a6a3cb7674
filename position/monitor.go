package position

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/franco-bianco/solcopy-go/swap"
)

// ExecResult is the terminal outcome of a submitted swap.
type ExecResult struct {
	Signature solana.Signature
	AmountOut uint64
}

// SwapExecutor submits a swap and waits for its terminal outcome. The
// monitor calls it at most once per close decision, always after BeginClose.
type SwapExecutor interface {
	Swap(ctx context.Context, venue swap.Venue, pool *swap.PoolInfo, mintIn, mintOut solana.PublicKey, amountIn uint64) (ExecResult, error)
}

// ReserveReader fetches the live reserves of a pool's two vault accounts.
type ReserveReader interface {
	Reserves(ctx context.Context, baseVault, quoteVault solana.PublicKey) (base, quote uint64, err error)
}

// Quoter prices a sell of amountIn via an external route, already net of the
// requested slippage.
type Quoter interface {
	Quote(ctx context.Context, mintIn, mintOut solana.PublicKey, amountIn uint64, slippageBps int) (uint64, error)
}

// Closed describes one finalized exit, delivered to the driver's callback
// for trade logging.
type Closed struct {
	Position         Position
	ProceedsLamports uint64
	ProfitPercent    decimal.Decimal
	Signature        solana.Signature
}

// MonitorConfig carries the runtime knobs of the profit loop.
type MonitorConfig struct {
	Interval         time.Duration
	ProfitMultiplier decimal.Decimal // e.g. 1.25 for a 25% gain target
	SlippageBps      int
}

// Monitor periodically re-evaluates every open position against its profit
// target and closes the profitable ones. Position evaluations within one
// cycle run concurrently; BeginClose is the only serialization point.
type Monitor struct {
	tracker  *Tracker
	reserves ReserveReader
	quoter   Quoter
	exec     SwapExecutor
	cfg      MonitorConfig
	log      *logrus.Logger
	onClosed func(Closed)
}

func NewMonitor(tracker *Tracker, reserves ReserveReader, quoter Quoter, exec SwapExecutor, cfg MonitorConfig, log *logrus.Logger) *Monitor {
	if log == nil {
		log = logrus.New()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	return &Monitor{
		tracker:  tracker,
		reserves: reserves,
		quoter:   quoter,
		exec:     exec,
		cfg:      cfg,
		log:      log,
	}
}

// OnClosed registers a callback invoked after every finalized exit. Must be
// set before Run.
func (m *Monitor) OnClosed(fn func(Closed)) { m.onClosed = fn }

// Run polls until the context is cancelled. Each cycle snapshots the open
// positions and fans out one evaluation per position; no lock is held across
// the network calls.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.log.Infof("profit monitor started, interval=%s target=%sx", m.cfg.Interval, m.cfg.ProfitMultiplier)
	for {
		select {
		case <-ctx.Done():
			m.log.Info("profit monitor stopped")
			return
		case <-ticker.C:
			m.cycle(ctx)
		}
	}
}

func (m *Monitor) cycle(ctx context.Context) {
	snap := m.tracker.Snapshot()
	if len(snap) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, pos := range snap {
		if pos.Status != StatusOpen {
			continue
		}
		wg.Add(1)
		go func(pos Position) {
			defer wg.Done()
			m.evaluate(ctx, pos)
		}(pos)
	}
	wg.Wait()
}

// evaluate prices one position and closes it when the expected proceeds
// reach the profit target. Errors are local to this position and cycle.
func (m *Monitor) evaluate(ctx context.Context, pos Position) {
	proceeds, err := m.expectedProceeds(ctx, pos)
	if err != nil {
		m.log.Warnf("profit check skipped for %s: %v", pos.Mint, err)
		return
	}

	target := decimal.NewFromInt(int64(pos.EntryLamports)).Mul(m.cfg.ProfitMultiplier)
	if decimal.NewFromInt(int64(proceeds)).LessThan(target) {
		return
	}
	m.close(ctx, pos, proceeds)
}

// close runs the exit state machine: BeginClose gates the swap, a confirmed
// swap finalizes, anything else aborts back to Open.
func (m *Monitor) close(ctx context.Context, pos Position, expected uint64) {
	held, err := m.tracker.BeginClose(pos.Mint)
	if err != nil {
		// Another cycle or the sell-mirror path got there first.
		m.log.Debugf("close of %s yielded: %v", pos.Mint, err)
		return
	}

	m.log.Infof("profit target hit for %s: expected %d lamports (entry %d)", held.Mint, expected, held.EntryLamports)
	res, err := m.exec.Swap(ctx, held.Venue, held.Pool, held.Mint, swap.NATIVE_SOL_MINT, held.Quantity)
	if err != nil {
		m.tracker.AbortClose(held.Mint)
		m.log.Errorf("Sale failed for %s, position kept open: %v", held.Mint, err)
		return
	}

	final, err := m.tracker.FinalizeClose(held.Mint)
	if err != nil {
		m.log.Errorf("finalize close of %s: %v", held.Mint, err)
		return
	}

	proceeds := res.AmountOut
	if proceeds == 0 {
		proceeds = expected
	}
	profit := RealizedProfitPercent(final.EntryLamports, final.FeeLamports, proceeds)
	m.log.Infof("position closed: %s proceeds=%d profit=%s%%", final.Mint, proceeds, profit.StringFixed(2))

	if m.onClosed != nil {
		m.onClosed(Closed{
			Position:         final,
			ProceedsLamports: proceeds,
			ProfitPercent:    profit,
			Signature:        res.Signature,
		})
	}
}

// expectedProceeds estimates the native return of selling the whole held
// quantity right now: from live pool reserves when the entry's pool and its
// vaults are known, otherwise from a live aggregator quote.
func (m *Monitor) expectedProceeds(ctx context.Context, pos Position) (uint64, error) {
	if pos.Pool != nil && pos.Pool.HasNativeLeg() && !pos.Pool.BaseVault.IsZero() {
		tokenVault, nativeVault := pos.Pool.BaseVault, pos.Pool.QuoteVault
		if pos.Pool.BaseMint.Equals(swap.NATIVE_SOL_MINT) {
			tokenVault, nativeVault = pos.Pool.QuoteVault, pos.Pool.BaseVault
		}
		tokenReserve, nativeReserve, err := m.reserves.Reserves(ctx, tokenVault, nativeVault)
		if err != nil {
			return 0, err
		}
		return ExpectAmountOut(pos.Quantity, tokenReserve, nativeReserve, m.cfg.SlippageBps), nil
	}
	return m.quoter.Quote(ctx, pos.Mint, swap.NATIVE_SOL_MINT, pos.Quantity, m.cfg.SlippageBps)
}

// ExpectAmountOut is the constant-product estimate of the native amount
// received for selling amountIn into the pool, reduced by the slippage
// allowance in basis points.
func ExpectAmountOut(amountIn, reserveIn, reserveOut uint64, slippageBps int) uint64 {
	if amountIn == 0 || reserveIn == 0 || reserveOut == 0 {
		return 0
	}
	in := new(big.Int).SetUint64(amountIn)
	rIn := new(big.Int).SetUint64(reserveIn)
	rOut := new(big.Int).SetUint64(reserveOut)

	// out = reserveOut * amountIn / (reserveIn + amountIn)
	out := new(big.Int).Mul(rOut, in)
	out.Div(out, new(big.Int).Add(rIn, in))

	// apply slippage allowance
	out.Mul(out, big.NewInt(int64(10000-slippageBps)))
	out.Div(out, big.NewInt(10000))
	return out.Uint64()
}

// RealizedProfitPercent is (proceeds - entry - fee) / (entry + fee) * 100.
func RealizedProfitPercent(entry, fee, proceeds uint64) decimal.Decimal {
	cost := decimal.NewFromInt(int64(entry)).Add(decimal.NewFromInt(int64(fee)))
	if cost.IsZero() {
		return decimal.Zero
	}
	gain := decimal.NewFromInt(int64(proceeds)).Sub(cost)
	return gain.Div(cost).Mul(decimal.NewFromInt(100))
}
