// Package tradelog records every trading decision, including skips, to
// durable sinks so a run can be audited after the fact.
package tradelog

import "time"

type Action string

const (
	// ActionDetected marks a target buy that passed classification,
	// recorded before any mirroring decision.
	ActionDetected Action = "BUY_DETECTED"
	ActionBuy      Action = "BUY"
	ActionSell     Action = "SELL"
	ActionSkip     Action = "SKIP"
	ActionError    Action = "ERROR"
)

// Entry is one auditable decision. Reason is empty for executed trades
// and explains the cause for skips and failures.
type Entry struct {
	Timestamp time.Time
	Action    Action
	Wallet    string
	Token     string
	AmountSOL float64
	Reason    string
}

// Sink is implemented by every trade log backend.
type Sink interface {
	Record(entry Entry) error
	Close() error
}

// MultiSink fans a record out to several backends; the first error wins
// but all sinks still receive the entry.
type MultiSink []Sink

func (m MultiSink) Record(entry Entry) error {
	var first error
	for _, s := range m {
		if err := s.Record(entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
