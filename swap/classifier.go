package swap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
)

// Classification errors. Every one of these means "not a swap we can mirror";
// the driver logs the reason and drops the transaction, it never retries.
var (
	ErrNoDex                    = errors.New("no known dex program referenced")
	ErrNoPool                   = errors.New("no pool-owned account referenced")
	ErrInsufficientTransferData = errors.New("insufficient transfer data")
	ErrCircularSwap             = errors.New("circular swap: identical mints on both legs")
	ErrUnknownDirection         = errors.New("balance deltas do not resolve a direction")
)

// Classification is the directional class of an observed swap.
type Classification string

const (
	ClassBuy     Classification = "Buy"
	ClassSell    Classification = "Sell"
	ClassSwap    Classification = "Swap"
	ClassUnknown Classification = "Unknown"
)

// TokenLeg is one side of a swap. Amount is in the mint's base units until
// scaled by Decimals for display.
type TokenLeg struct {
	Mint     solana.PublicKey
	Amount   uint64
	Decimals uint8
	Symbol   string
}

// UiAmount returns the leg's amount scaled to display units.
func (l TokenLeg) UiAmount() float64 {
	return UiUnits(l.Amount, l.Decimals)
}

// SwapResult is the canonical classification of one observed transaction.
// Constructed once, immutable, consumed by the driver and discarded.
type SwapResult struct {
	Signature      solana.Signature
	Venue          Venue
	Pool           *PoolInfo // nil for aggregator-routed swaps
	Classification Classification
	From           TokenLeg
	To             TokenLeg
	Timestamp      time.Time
}

// NativeAmount returns the wrapped-SOL side of the swap in display units, or
// 0 when neither leg is the native asset. This is the trade size the driver
// filters on.
func (r *SwapResult) NativeAmount() float64 {
	switch {
	case r.From.Mint.Equals(NATIVE_SOL_MINT):
		return r.From.UiAmount()
	case r.To.Mint.Equals(NATIVE_SOL_MINT):
		return r.To.UiAmount()
	}
	return 0
}

// tokenAccountInfo maps a token account to its mint.
type tokenAccountInfo struct {
	Mint     solana.PublicKey
	Decimals uint8
}

// Classifier classifies a single parsed transaction. It is built per
// transaction and holds the derived account maps the sub-steps share.
type Classifier struct {
	tx     *solana.Transaction
	meta   *rpc.TransactionMeta
	keys   solana.PublicKeySlice
	target solana.PublicKey
	reader AccountReader
	log    *logrus.Logger

	tokenAccounts map[solana.PublicKey]tokenAccountInfo
	decimals      map[solana.PublicKey]uint8
	pre, post     []BalanceRecord
}

// NewClassifier builds a classifier for one transaction observed for the
// target wallet. The reader is consulted only by the pool locator.
func NewClassifier(tx *solana.Transaction, meta *rpc.TransactionMeta, target solana.PublicKey, reader AccountReader, log *logrus.Logger) (*Classifier, error) {
	if tx == nil || meta == nil {
		return nil, fmt.Errorf("classifier needs both transaction and meta")
	}
	if log == nil {
		log = logrus.New()
	}

	keys := append(solana.PublicKeySlice{}, tx.Message.AccountKeys...)
	keys = append(keys, meta.LoadedAddresses.Writable...)
	keys = append(keys, meta.LoadedAddresses.ReadOnly...)

	c := &Classifier{
		tx:     tx,
		meta:   meta,
		keys:   keys,
		target: target,
		reader: reader,
		log:    log,
	}
	c.extractTokenAccounts()
	c.extractDecimals()
	c.pre = c.balanceRecords(meta.PreTokenBalances)
	c.post = c.balanceRecords(meta.PostTokenBalances)
	return c, nil
}

// FromTransactionResult is a convenience constructor over the raw RPC result.
func FromTransactionResult(res *rpc.GetTransactionResult, target solana.PublicKey, reader AccountReader, log *logrus.Logger) (*Classifier, error) {
	tx, err := res.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return NewClassifier(tx, res.Meta, target, reader, log)
}

// Classify runs the full pipeline: identify the venue, locate the pool or
// trace the aggregator route, derive legs from balance deltas, classify.
func (c *Classifier) Classify(ctx context.Context) (*SwapResult, error) {
	venue, ok := IdentifyDex(c.meta.LogMessages)
	if !ok {
		return nil, ErrNoDex
	}

	result := &SwapResult{
		Venue:     venue,
		Timestamp: time.Now(),
	}
	if len(c.tx.Signatures) > 0 {
		result.Signature = c.tx.Signatures[0]
	}

	var err error
	vcap := venueCapabilities[venue]
	switch {
	case vcap.aggregator:
		err = c.classifyAggregator(venue, result)
	case vcap.layout != layoutNone:
		err = c.classifyPoolVenue(ctx, venue, result)
	default:
		err = c.classifyTransferVenue(venue, result)
	}
	if err != nil {
		return nil, err
	}

	if result.From.Mint.Equals(result.To.Mint) {
		return nil, fmt.Errorf("%w: %s", ErrCircularSwap, result.From.Mint)
	}

	switch {
	case result.From.Mint.Equals(NATIVE_SOL_MINT):
		result.Classification = ClassBuy
	case result.To.Mint.Equals(NATIVE_SOL_MINT):
		result.Classification = ClassSell
	default:
		result.Classification = ClassSwap
	}
	return result, nil
}

// classifyAggregator handles routed swaps: the route event when present,
// otherwise the ordered-transfer trace.
func (c *Classifier) classifyAggregator(venue Venue, result *SwapResult) error {
	program := venueCapabilities[venue].program
	index := -1
	for i, instr := range c.tx.Message.Instructions {
		if int(instr.ProgramIDIndex) < len(c.keys) && c.keys[instr.ProgramIDIndex].Equals(program) {
			index = i
			break
		}
	}
	if index < 0 {
		return fmt.Errorf("%w: %s program in logs but not in instructions", ErrInsufficientTransferData, venue)
	}

	if events := c.decodeJupiterRouteEvents(index); len(events) > 0 {
		return c.legsFromRouteEvents(events, result)
	}

	first, last, err := c.traceAggregatorSpan(index)
	if err != nil {
		return err
	}
	result.From = TokenLeg{Mint: first.Mint, Amount: first.Amount, Decimals: c.legDecimals(first.Mint, first.Decimals)}
	result.To = TokenLeg{Mint: last.Mint, Amount: last.Amount, Decimals: c.legDecimals(last.Mint, last.Decimals)}
	return nil
}

// legsFromRouteEvents aggregates per-hop route events into route-level legs.
// All hops share the route's input/output mints in practice; amounts from a
// hop with a different mint are not summed into the leg totals.
func (c *Classifier) legsFromRouteEvents(events []JupiterRouteEvent, result *SwapResult) error {
	inMint, outMint := events[0].InputMint, events[len(events)-1].OutputMint
	var totalIn, totalOut uint64
	for _, ev := range events {
		if ev.InputMint.Equals(inMint) {
			totalIn += ev.InputAmount
		}
		if ev.OutputMint.Equals(outMint) {
			totalOut += ev.OutputAmount
		}
	}
	result.From = TokenLeg{Mint: inMint, Amount: totalIn, Decimals: c.legDecimals(inMint, 0)}
	result.To = TokenLeg{Mint: outMint, Amount: totalOut, Decimals: c.legDecimals(outMint, 0)}
	return nil
}

// classifyPoolVenue locates the pool account(s), decodes their layouts and
// derives direction from the target's balance deltas over the pool legs.
func (c *Classifier) classifyPoolVenue(ctx context.Context, venue Venue, result *SwapResult) error {
	pools, err := c.locatePools(ctx, venue)
	if err != nil {
		return err
	}
	if len(pools) == 0 {
		return ErrNoPool
	}

	firstPool, lastPool := pools[0], pools[len(pools)-1]
	result.Pool = firstPool

	var fromMint, toMint solana.PublicKey
	if len(pools) == 1 {
		// Single hop: the pool's two legs are the candidates, direction
		// comes from the signed deltas below.
		fromMint, toMint = firstPool.BaseMint, firstPool.QuoteMint
	} else {
		// Multi-hop route: the intermediate leg is not user-facing. The
		// first pool's non-native leg was spent, the last pool's received.
		fromMint, toMint = firstPool.CounterMint(), lastPool.CounterMint()
	}

	fromDelta := c.deltaFor(fromMint)
	toDelta := c.deltaFor(toMint)

	switch {
	case fromDelta.Amount < 0 && toDelta.Amount > 0:
		// candidates already oriented
	case fromDelta.Amount > 0 && toDelta.Amount < 0:
		fromMint, toMint = toMint, fromMint
		fromDelta, toDelta = toDelta, fromDelta
	default:
		return fmt.Errorf("%w: deltas %f / %f for %s and %s",
			ErrUnknownDirection, fromDelta.Amount, toDelta.Amount, fromMint, toMint)
	}

	result.From = TokenLeg{
		Mint:     fromMint,
		Amount:   BaseUnits(-fromDelta.Amount, fromDelta.Decimals),
		Decimals: fromDelta.Decimals,
	}
	result.To = TokenLeg{
		Mint:     toMint,
		Amount:   BaseUnits(toDelta.Amount, toDelta.Decimals),
		Decimals: toDelta.Decimals,
	}
	return nil
}

// classifyTransferVenue covers venues whose pool layout we do not decode:
// the legs are harvested from the transfer CPIs under the venue instruction
// and attributed using the target's token accounts, the same way a router
// swap's legs are netted.
func (c *Classifier) classifyTransferVenue(venue Venue, result *SwapResult) error {
	program := venueCapabilities[venue].program

	var events []TransferEvent
	for i, instr := range c.tx.Message.Instructions {
		if int(instr.ProgramIDIndex) < len(c.keys) && c.keys[instr.ProgramIDIndex].Equals(program) {
			events = append(events, c.collectTransfers(i)...)
		}
	}
	if len(events) < 2 {
		return fmt.Errorf("%w: %d transfer(s) under %s instructions", ErrInsufficientTransferData, len(events), venue)
	}

	userAccounts := c.targetTokenAccounts()

	inputTotals := make(map[solana.PublicKey]uint64)
	outputTotals := make(map[solana.PublicKey]uint64)
	for _, ev := range events {
		if ev.Mint.IsZero() {
			continue
		}
		if ev.Authority.Equals(c.target) || userAccounts[ev.Source] {
			inputTotals[ev.Mint] += ev.Amount
		}
		if userAccounts[ev.Destination] {
			outputTotals[ev.Mint] += ev.Amount
		}
	}

	fromMint, fromAmount := dominantMint(inputTotals)
	toMint, toAmount := dominantMint(outputTotals)
	if fromMint.IsZero() || toMint.IsZero() {
		return fmt.Errorf("%w: no transfers attributable to target %s", ErrUnknownDirection, c.target)
	}

	result.From = TokenLeg{Mint: fromMint, Amount: fromAmount, Decimals: c.legDecimals(fromMint, 0)}
	result.To = TokenLeg{Mint: toMint, Amount: toAmount, Decimals: c.legDecimals(toMint, 0)}
	return nil
}

// deltaFor computes the target-filtered signed delta for a mint, falling back
// to the target's lamport balance change for the native asset, which covers
// swaps funded straight from SOL without a surviving wrapped account.
func (c *Classifier) deltaFor(mint solana.PublicKey) Delta {
	d := BalanceDiff(c.pre, c.post, mint, c.target)
	if mint.Equals(NATIVE_SOL_MINT) && d.Amount == 0 {
		if lamports, ok := c.lamportDelta(); ok {
			d.Amount = RoundToDecimals(lamports, 9)
			d.Decimals = 9
			d.LowConfidence = false
		}
	}
	return d
}

// lamportDelta is the target wallet's own SOL balance change in display
// units, fees included, mirroring how the observed trade size is derived
// from the fee payer's balances.
func (c *Classifier) lamportDelta() (float64, bool) {
	for i, key := range c.keys {
		if !key.Equals(c.target) {
			continue
		}
		if i >= len(c.meta.PreBalances) || i >= len(c.meta.PostBalances) {
			return 0, false
		}
		pre := float64(c.meta.PreBalances[i])
		post := float64(c.meta.PostBalances[i])
		return (post - pre) / 1e9, true
	}
	return 0, false
}

func (c *Classifier) legDecimals(mint solana.PublicKey, fallback uint8) uint8 {
	if d, ok := c.decimals[mint]; ok && d > 0 {
		return d
	}
	if fallback > 0 {
		return fallback
	}
	if mint.Equals(NATIVE_SOL_MINT) {
		return 9
	}
	return c.decimals[mint]
}

// targetTokenAccounts is the set of SPL token accounts owned by the target,
// from both pre and post balances.
func (c *Classifier) targetTokenAccounts() map[solana.PublicKey]bool {
	accounts := make(map[solana.PublicKey]bool)
	for _, balances := range [][]rpc.TokenBalance{c.meta.PreTokenBalances, c.meta.PostTokenBalances} {
		for _, b := range balances {
			if b.Owner != nil && b.Owner.Equals(c.target) && int(b.AccountIndex) < len(c.keys) {
				accounts[c.keys[b.AccountIndex]] = true
			}
		}
	}
	return accounts
}

// extractTokenAccounts builds the token-account -> (mint, decimals) map from
// pre and post balances, then backfills accounts only seen inside transfer
// instructions: TransferChecked names its mint, and a plain Transfer's two
// sides must share one, so a known side propagates to the unknown one.
func (c *Classifier) extractTokenAccounts() {
	accounts := make(map[solana.PublicKey]tokenAccountInfo)
	for _, balances := range [][]rpc.TokenBalance{c.meta.PreTokenBalances, c.meta.PostTokenBalances} {
		for _, b := range balances {
			if b.Mint.IsZero() || b.UiTokenAmount == nil || int(b.AccountIndex) >= len(c.keys) {
				continue
			}
			accounts[c.keys[b.AccountIndex]] = tokenAccountInfo{
				Mint:     b.Mint,
				Decimals: b.UiTokenAmount.Decimals,
			}
		}
	}

	process := func(instr solana.CompiledInstruction) {
		if int(instr.ProgramIDIndex) >= len(c.keys) || !c.isTokenProgram(c.keys[instr.ProgramIDIndex]) {
			return
		}
		if len(instr.Data) == 0 || len(instr.Accounts) < 3 {
			return
		}
		// Account indices come off the wire; anything out of range marks the
		// instruction malformed and it contributes nothing to the map.
		for _, idx := range instr.Accounts[:3] {
			if int(idx) >= len(c.keys) {
				return
			}
		}
		switch instr.Data[0] {
		case 12: // TransferChecked: [src, mint, dst, ...]
			mint := c.keys[instr.Accounts[1]]
			for _, idx := range []uint16{instr.Accounts[0], instr.Accounts[2]} {
				addr := c.keys[idx]
				if info := accounts[addr]; info.Mint.IsZero() {
					accounts[addr] = tokenAccountInfo{Mint: mint, Decimals: info.Decimals}
				}
			}
		case 3: // Transfer: [src, dst, authority]
			src, dst := c.keys[instr.Accounts[0]], c.keys[instr.Accounts[1]]
			sInfo, dInfo := accounts[src], accounts[dst]
			switch {
			case !sInfo.Mint.IsZero() && dInfo.Mint.IsZero():
				accounts[dst] = tokenAccountInfo{Mint: sInfo.Mint, Decimals: sInfo.Decimals}
			case !dInfo.Mint.IsZero() && sInfo.Mint.IsZero():
				accounts[src] = tokenAccountInfo{Mint: dInfo.Mint, Decimals: dInfo.Decimals}
			}
		}
	}

	for _, instr := range c.tx.Message.Instructions {
		process(instr)
	}
	for _, innerSet := range c.meta.InnerInstructions {
		for _, instr := range innerSet.Instructions {
			process(c.convertRPCToSolanaInstruction(instr))
		}
	}
	c.tokenAccounts = accounts
}

// extractDecimals builds the mint -> decimals map from the balance records.
func (c *Classifier) extractDecimals() {
	decimals := make(map[solana.PublicKey]uint8)
	for _, balances := range [][]rpc.TokenBalance{c.meta.PreTokenBalances, c.meta.PostTokenBalances} {
		for _, b := range balances {
			if !b.Mint.IsZero() && b.UiTokenAmount != nil {
				decimals[b.Mint] = b.UiTokenAmount.Decimals
			}
		}
	}
	decimals[NATIVE_SOL_MINT] = 9
	c.decimals = decimals
}

// balanceRecords flattens RPC token balances into diff-engine records.
func (c *Classifier) balanceRecords(balances []rpc.TokenBalance) []BalanceRecord {
	records := make([]BalanceRecord, 0, len(balances))
	for _, b := range balances {
		if b.UiTokenAmount == nil {
			continue
		}
		r := BalanceRecord{Mint: b.Mint, Decimals: b.UiTokenAmount.Decimals}
		if b.Owner != nil {
			r.Owner = *b.Owner
		}
		if b.UiTokenAmount.UiAmount != nil {
			r.UiAmount = *b.UiTokenAmount.UiAmount
		} else if amt, err := strconv.ParseUint(b.UiTokenAmount.Amount, 10, 64); err == nil {
			r.UiAmount = UiUnits(amt, r.Decimals)
		}
		records = append(records, r)
	}
	return records
}

func dominantMint(totals map[solana.PublicKey]uint64) (solana.PublicKey, uint64) {
	var mint solana.PublicKey
	var amount uint64
	for m, a := range totals {
		if a > amount || (a == amount && m.String() < mint.String()) {
			mint, amount = m, a
		}
	}
	return mint, amount
}
