package watch

import (
	"context"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Handler consumes one deduplicated, error-free notification for the target
// wallet. logs may be nil when the source does not deliver them.
type Handler func(ctx context.Context, sig solana.Signature, logs []string)

// WSWatcher pushes confirmed transactions mentioning the target wallet via a
// logsSubscribe subscription, reconnecting with backoff on stream errors.
type WSWatcher struct {
	endpoint string
	target   solana.PublicKey
	window   *SignatureWindow
	log      *logrus.Logger
}

func NewWSWatcher(endpoint string, target solana.PublicKey, window *SignatureWindow, log *logrus.Logger) *WSWatcher {
	if log == nil {
		log = logrus.New()
	}
	return &WSWatcher{endpoint: endpoint, target: target, window: window, log: log}
}

// Run blocks until the context is cancelled. Each delivery is handled in its
// own goroutine: classification of distinct signatures may complete out of
// order, only the window insertion is ordered.
func (w *WSWatcher) Run(ctx context.Context, handle Handler) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		if err := w.subscribe(ctx, handle); err != nil && ctx.Err() == nil {
			w.log.Warnf("log subscription dropped, reconnecting in %s: %v", backoff, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
	}
}

func (w *WSWatcher) subscribe(ctx context.Context, handle Handler) error {
	client, err := ws.Connect(ctx, w.endpoint)
	if err != nil {
		return err
	}
	defer client.Close()

	sub, err := client.LogsSubscribeMentions(w.target, rpc.CommitmentConfirmed)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	w.log.Infof("watching %s via logsSubscribe", w.target)
	for {
		res, err := sub.Recv(ctx)
		if err != nil {
			return err
		}
		if res.Value.Err != nil {
			// Failed transactions are delivered too; they never classify.
			continue
		}
		sig := res.Value.Signature
		if !w.window.MarkSeen(sig) {
			continue
		}
		logs := res.Value.Logs
		go handle(ctx, sig, logs)
	}
}

// PollWatcher backstops the subscription with a rate-limited signature scan
// of the target's address, oldest first, gated on the app start time so
// pre-launch history is never traded. The shared window dedupes against
// deliveries the subscription already handled.
type PollWatcher struct {
	client    *rpc.Client
	target    solana.PublicKey
	window    *SignatureWindow
	limiter   *rate.Limiter
	interval  time.Duration
	limit     int
	startedAt time.Time
	log       *logrus.Logger
}

func NewPollWatcher(client *rpc.Client, target solana.PublicKey, window *SignatureWindow, interval time.Duration, log *logrus.Logger) *PollWatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log == nil {
		log = logrus.New()
	}
	return &PollWatcher{
		client:    client,
		target:    target,
		window:    window,
		limiter:   rate.NewLimiter(rate.Every(time.Second), 2),
		interval:  interval,
		limit:     10,
		startedAt: time.Now(),
		log:       log,
	}
}

// Run blocks until the context is cancelled.
func (p *PollWatcher) Run(ctx context.Context, handle Handler) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Infof("watching %s via signature polling every %s", p.target, p.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.scan(ctx, handle)
		}
	}
}

func (p *PollWatcher) scan(ctx context.Context, handle Handler) {
	if err := p.limiter.Wait(ctx); err != nil {
		return
	}
	sigs, err := p.client.GetSignaturesForAddressWithOpts(ctx, p.target, &rpc.GetSignaturesForAddressOpts{
		Limit:      pointer.ToInt(p.limit),
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		// Transient RPC trouble skips this scan, the loop keeps going.
		p.log.Warnf("signature scan failed: %v", err)
		return
	}

	// Results arrive newest first; process oldest first.
	for i := len(sigs) - 1; i >= 0; i-- {
		info := sigs[i]
		if info.Err != nil {
			continue
		}
		if info.BlockTime != nil && info.BlockTime.Time().Before(p.startedAt) {
			continue
		}
		if !p.window.MarkSeen(info.Signature) {
			continue
		}
		go handle(ctx, info.Signature, nil)
	}
}
