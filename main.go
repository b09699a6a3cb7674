package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"github.com/franco-bianco/solcopy-go/config"
	"github.com/franco-bianco/solcopy-go/jupiter"
	"github.com/franco-bianco/solcopy-go/position"
	"github.com/franco-bianco/solcopy-go/swap"
	"github.com/franco-bianco/solcopy-go/tradelog"
	"github.com/franco-bianco/solcopy-go/trader"
	"github.com/franco-bianco/solcopy-go/watch"
)

const (
	lamportsPerSOL = 1_000_000_000

	// Entry cost besides the swap itself: the priority fee attached to every
	// submitted transaction plus the base signature fee.
	priorityFeeLamports  = 100_000
	signatureFeeLamports = 5_000
	entryFeeLamports     = priorityFeeLamports + signatureFeeLamports
)

type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	txClient *rpc.Client
	accounts *trader.AccountService
	exec     position.SwapExecutor
	tracker  *position.Tracker
	trades   tradelog.Sink

	mu        sync.Mutex
	purchased map[solana.PublicKey]struct{}
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if len(os.Args) != 2 {
		log.Fatalf("usage: %s <env-file>", os.Args[0])
	}
	cfg, err := config.Load(os.Args[1])
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watchClient := rpc.New(cfg.ConnectionURL1)
	tradeClient := rpc.New(cfg.ConnectionURL2)
	jup := jupiter.NewClient(jupiter.DefaultBaseURL)

	var sinks tradelog.MultiSink
	csvSink, err := tradelog.NewCSVSink(cfg.LogFile)
	if err != nil {
		log.Fatalf("trade log: %v", err)
	}
	sinks = append(sinks, csvSink)
	if cfg.DatabaseURL != "" {
		pgSink, err := tradelog.NewPostgresSink(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("trade database: %v", err)
		}
		sinks = append(sinks, pgSink)
	}
	defer sinks.Close()

	a := &app{
		cfg:      cfg,
		log:      log,
		txClient: watchClient,
		accounts: trader.NewAccountService(watchClient),
		exec: trader.NewExecutor(tradeClient, jup, cfg.WalletPrivateKey, trader.Config{
			SlippageBps:         cfg.SlippageBps,
			PriorityFeeLamports: priorityFeeLamports,
			ConfirmTimeout:      60 * time.Second,
		}, log),
		tracker:   position.NewTracker(log),
		trades:    sinks,
		purchased: make(map[solana.PublicKey]struct{}),
	}

	monitor := position.NewMonitor(
		a.tracker,
		trader.NewReserveService(tradeClient),
		trader.NewQuoteService(jup),
		a.exec,
		position.MonitorConfig{
			Interval:         cfg.PollInterval,
			ProfitMultiplier: cfg.ProfitMultiplier,
			SlippageBps:      cfg.SlippageBps,
		},
		log,
	)
	monitor.OnClosed(func(c position.Closed) {
		a.record(tradelog.ActionSell, c.Position.Mint,
			float64(c.ProceedsLamports)/lamportsPerSOL,
			"Profit target reached ("+c.ProfitPercent.StringFixed(2)+"%)")
	})

	log.Infof("copy trading %s, mirroring buys of %.4f SOL, exit at %sx",
		cfg.TargetWallet, cfg.TradeAmountSOL, cfg.ProfitMultiplier)

	window := watch.NewSignatureWindow(cfg.SignatureWindow)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); monitor.Run(ctx) }()
	go func() {
		defer wg.Done()
		if cfg.WSURL != "" {
			watch.NewWSWatcher(cfg.WSURL, cfg.TargetWallet, window, log).Run(ctx, a.handleSignature)
			return
		}
		watch.NewPollWatcher(watchClient, cfg.TargetWallet, window, cfg.PollInterval, log).Run(ctx, a.handleSignature)
	}()

	<-ctx.Done()
	log.Info("shutting down")
	wg.Wait()
}

// handleSignature resolves a signature seen on the target wallet into a
// classified swap and mirrors it.
func (a *app) handleSignature(ctx context.Context, sig solana.Signature, _ []string) {
	res, err := a.fetchTransaction(ctx, sig)
	if err != nil {
		a.log.Warnf("fetch %s: %v", sig, err)
		return
	}

	classifier, err := swap.FromTransactionResult(res, a.cfg.TargetWallet, a.accounts, a.log)
	if err != nil {
		a.log.Debugf("%s: %v", sig, err)
		return
	}
	result, err := classifier.Classify(ctx)
	if err != nil {
		if errors.Is(err, swap.ErrNoDex) {
			return
		}
		a.log.Debugf("classify %s: %v", sig, err)
		return
	}
	result.Signature = sig

	switch result.Classification {
	case swap.ClassBuy:
		a.mirrorBuy(ctx, result)
	case swap.ClassSell:
		a.mirrorSell(ctx, result)
	default:
		a.log.Debugf("%s: token-to-token swap ignored (%s -> %s)",
			sig, result.From.Mint, result.To.Mint)
	}
}

// Confirmed transactions can lag behind their log notification, so the
// fetch retries briefly before giving up.
func (a *app) fetchTransaction(ctx context.Context, sig solana.Signature) (*rpc.GetTransactionResult, error) {
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
		res, err := a.txClient.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
			Commitment:                     rpc.CommitmentConfirmed,
			MaxSupportedTransactionVersion: pointer.ToUint64(0),
		})
		if err == nil && res != nil {
			return res, nil
		}
		if err == nil {
			err = rpc.ErrNotFound
		}
		lastErr = err
	}
	return nil, lastErr
}

func (a *app) mirrorBuy(ctx context.Context, result *swap.SwapResult) {
	mint := result.To.Mint
	native := result.NativeAmount()

	a.log.Infof("target bought %s for %.4f SOL on %s (%s)",
		mint, native, result.Venue, result.Signature)
	a.record(tradelog.ActionDetected, mint, native, "")

	if native < a.cfg.TargetWalletMinTrade {
		a.log.Infof("skipping %s: below minimum trade size (%.4f < %.4f SOL)",
			mint, native, a.cfg.TargetWalletMinTrade)
		a.record(tradelog.ActionSkip, mint, native, "Below minimum trade size")
		return
	}
	if !a.markPurchased(mint) {
		a.log.Infof("skipping %s: token already purchased", mint)
		a.record(tradelog.ActionSkip, mint, native, "Token already purchased")
		return
	}

	lamports := uint64(a.cfg.TradeAmountSOL * lamportsPerSOL)
	execRes, err := a.exec.Swap(ctx, result.Venue, result.Pool, swap.NATIVE_SOL_MINT, mint, lamports)
	if err != nil {
		a.unmarkPurchased(mint)
		a.log.Errorf("buy of %s failed: %v", mint, err)
		a.record(tradelog.ActionError, mint, a.cfg.TradeAmountSOL, "Buy failed: "+err.Error())
		return
	}

	pos := position.Position{
		Mint:          mint,
		EntryLamports: lamports,
		FeeLamports:   entryFeeLamports,
		Venue:         result.Venue,
		Pool:          result.Pool,
		Decimals:      result.To.Decimals,
		Symbol:        result.To.Symbol,
		Quantity:      execRes.AmountOut,
		OpenedAt:      time.Now(),
	}
	if err := a.tracker.Open(pos); err != nil {
		a.log.Errorf("track position %s: %v", mint, err)
		return
	}
	a.log.Infof("bought %s: %d base units for %.4f SOL (%s)",
		mint, execRes.AmountOut, a.cfg.TradeAmountSOL, execRes.Signature)
	a.record(tradelog.ActionBuy, mint, a.cfg.TradeAmountSOL, "")
}

// mirrorSell exits a held position because the target exited theirs,
// regardless of current profit.
func (a *app) mirrorSell(ctx context.Context, result *swap.SwapResult) {
	mint := result.From.Mint
	if !a.tracker.Held(mint) {
		return
	}
	a.log.Infof("target sold %s (%s), mirroring exit", mint, result.Signature)

	held, err := a.tracker.BeginClose(mint)
	if err != nil {
		// Monitor already claimed the close.
		a.log.Debugf("mirror sell of %s: %v", mint, err)
		return
	}
	execRes, err := a.exec.Swap(ctx, held.Venue, held.Pool, mint, swap.NATIVE_SOL_MINT, held.Quantity)
	if err != nil {
		a.tracker.AbortClose(mint)
		a.log.Errorf("Sale failed for %s, position kept open: %v", mint, err)
		a.record(tradelog.ActionError, mint, 0, "Sale failed: "+err.Error())
		return
	}
	if _, err := a.tracker.FinalizeClose(mint); err != nil {
		a.log.Errorf("finalize close of %s: %v", mint, err)
		return
	}
	a.log.Infof("sold %s for %.4f SOL (%s)",
		mint, float64(execRes.AmountOut)/lamportsPerSOL, execRes.Signature)
	a.record(tradelog.ActionSell, mint,
		float64(execRes.AmountOut)/lamportsPerSOL, "Target wallet sold")
}

func (a *app) markPurchased(mint solana.PublicKey) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.purchased[mint]; ok {
		return false
	}
	a.purchased[mint] = struct{}{}
	return true
}

func (a *app) unmarkPurchased(mint solana.PublicKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.purchased, mint)
}

func (a *app) record(action tradelog.Action, mint solana.PublicKey, amountSOL float64, reason string) {
	if err := a.trades.Record(tradelog.Entry{
		Timestamp: time.Now(),
		Action:    action,
		Wallet:    a.cfg.TargetWallet.String(),
		Token:     mint.String(),
		AmountSOL: amountSOL,
		Reason:    reason,
	}); err != nil {
		a.log.Errorf("trade log: %v", err)
	}
}
