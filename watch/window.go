package watch

import (
	"sync"

	"github.com/badgerodon/collections/queue"
	"github.com/gagliardetto/solana-go"
)

// SignatureWindow is a bounded, insertion-ordered set of recently handled
// transaction signatures. Re-delivered ledger notifications dedupe against
// it; once at capacity, inserting evicts the oldest entry.
type SignatureWindow struct {
	mu       sync.Mutex
	capacity int
	seen     map[solana.Signature]struct{}
	order    *queue.Queue
}

func NewSignatureWindow(capacity int) *SignatureWindow {
	if capacity <= 0 {
		capacity = 100
	}
	return &SignatureWindow{
		capacity: capacity,
		seen:     make(map[solana.Signature]struct{}, capacity),
		order:    queue.New(),
	}
}

// MarkSeen records the signature, reporting whether it was newly inserted.
// Insertion and lookup are one atomic step, so two concurrent deliveries of
// the same signature yield exactly one true.
func (w *SignatureWindow) MarkSeen(sig solana.Signature) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, dup := w.seen[sig]; dup {
		return false
	}
	if w.order.Len() >= w.capacity {
		oldest := w.order.Dequeue().(solana.Signature)
		delete(w.seen, oldest)
	}
	w.seen[sig] = struct{}{}
	w.order.Enqueue(sig)
	return true
}

// Seen reports membership without inserting.
func (w *SignatureWindow) Seen(sig solana.Signature) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.seen[sig]
	return ok
}

// Len is the current number of tracked signatures.
func (w *SignatureWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.order.Len()
}
