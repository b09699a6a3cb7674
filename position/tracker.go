package position

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/franco-bianco/solcopy-go/swap"
)

var (
	ErrAlreadyOpen = errors.New("position already open for mint")
	ErrNotOpen     = errors.New("no open position for mint")
	ErrNotClosing  = errors.New("position is not closing")
)

// Status is the lifecycle state of a held position.
type Status int

const (
	StatusOpen Status = iota + 1
	StatusClosing
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusClosing:
		return "Closing"
	case StatusClosed:
		return "Closed"
	}
	return "Unknown"
}

// Position is one held token bought by a mirrored trade.
type Position struct {
	Mint          solana.PublicKey
	EntryLamports uint64 // native cost paid to open
	FeeLamports   uint64 // network + priority fees paid on entry
	Venue         swap.Venue
	Pool          *swap.PoolInfo // nil when the entry was aggregator-routed
	Decimals      uint8
	Symbol        string
	Quantity      uint64 // held amount in the token's base units
	Status        Status
	OpenedAt      time.Time
}

// Tracker owns the table of open positions, keyed one-to-one by mint. All
// mutation goes through the methods below; Snapshot copies so callers never
// iterate under the lock during slow network calls.
type Tracker struct {
	mu        sync.Mutex
	positions map[solana.PublicKey]*Position
	log       *logrus.Logger
}

func NewTracker(log *logrus.Logger) *Tracker {
	if log == nil {
		log = logrus.New()
	}
	return &Tracker{
		positions: make(map[solana.PublicKey]*Position),
		log:       log,
	}
}

// Open records a freshly confirmed entry. At most one open position may
// exist per mint: a repeat buy signal is the caller's cue to skip.
func (t *Tracker) Open(p Position) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.positions[p.Mint]; exists {
		return ErrAlreadyOpen
	}
	p.Status = StatusOpen
	if p.OpenedAt.IsZero() {
		p.OpenedAt = time.Now()
	}
	t.positions[p.Mint] = &p
	t.log.Infof("position opened: %s qty=%d entry=%d lamports", p.Mint, p.Quantity, p.EntryLamports)
	return nil
}

// BeginClose transitions Open -> Closing. It is the single serialization
// point for exits: of two concurrent callers exactly one succeeds, so at
// most one exit swap is ever in flight per mint.
func (t *Tracker) BeginClose(mint solana.PublicKey) (Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, exists := t.positions[mint]
	if !exists || p.Status != StatusOpen {
		return Position{}, ErrNotOpen
	}
	p.Status = StatusClosing
	return *p, nil
}

// FinalizeClose removes a Closing position after its exit swap confirmed.
func (t *Tracker) FinalizeClose(mint solana.PublicKey) (Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, exists := t.positions[mint]
	if !exists || p.Status != StatusClosing {
		return Position{}, ErrNotClosing
	}
	p.Status = StatusClosed
	delete(t.positions, mint)
	return *p, nil
}

// AbortClose reverts Closing -> Open after a failed exit swap so the
// position stays eligible for the next poll cycle.
func (t *Tracker) AbortClose(mint solana.PublicKey) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, exists := t.positions[mint]; exists && p.Status == StatusClosing {
		p.Status = StatusOpen
	}
}

// Held reports whether a position exists for the mint, in any live state.
func (t *Tracker) Held(mint solana.PublicKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, exists := t.positions[mint]
	return exists
}

// Snapshot returns copies of all live positions, oldest first.
func (t *Tracker) Snapshot() []Position {
	t.mu.Lock()
	snap := make([]Position, 0, len(t.positions))
	for _, p := range t.positions {
		snap = append(snap, *p)
	}
	t.mu.Unlock()

	sort.Slice(snap, func(i, j int) bool { return snap[i].OpenedAt.Before(snap[j].OpenedAt) })
	return snap
}

// Len is the number of live positions.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.positions)
}
