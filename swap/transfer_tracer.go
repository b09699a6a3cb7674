package swap

import (
	"encoding/binary"
	"fmt"

	ag_binary "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// TransferEvent is one token-transfer-shaped inner instruction, resolved
// against the transaction's token-account maps.
type TransferEvent struct {
	Mint        solana.PublicKey
	Amount      uint64
	Decimals    uint8
	Source      solana.PublicKey
	Destination solana.PublicKey
	Authority   solana.PublicKey
}

// JupiterRouteEvent is the Anchor event the Jupiter program emits per routed
// hop. When present it is authoritative for the user-facing legs.
type JupiterRouteEvent struct {
	Amm          solana.PublicKey
	InputMint    solana.PublicKey
	InputAmount  uint64
	OutputMint   solana.PublicKey
	OutputAmount uint64
}

// Anchor event discriminator for the Jupiter route event.
var jupiterRouteEventDiscriminator = [16]byte{228, 69, 165, 46, 81, 203, 154, 29, 64, 198, 205, 232, 38, 8, 113, 226}

// decodeTransfer turns a Transfer(3) or TransferChecked(12) instruction into
// a TransferEvent. Mint and decimals come from the token-account map for
// plain transfers; TransferChecked carries the mint in its account list.
func (c *Classifier) decodeTransfer(instr solana.CompiledInstruction) (TransferEvent, bool) {
	switch {
	case c.isTransfer(instr):
		ev := TransferEvent{
			Amount:      binary.LittleEndian.Uint64(instr.Data[1:9]),
			Source:      c.keys[instr.Accounts[0]],
			Destination: c.keys[instr.Accounts[1]],
			Authority:   c.keys[instr.Accounts[2]],
		}
		// Prefer destination mint (usual case), else fall back to source.
		info, ok := c.tokenAccounts[ev.Destination]
		if !ok || info.Mint.IsZero() {
			info = c.tokenAccounts[ev.Source]
		}
		ev.Mint = info.Mint
		ev.Decimals = c.decimals[ev.Mint]
		return ev, true
	case c.isTransferCheck(instr):
		ev := TransferEvent{
			Amount:      binary.LittleEndian.Uint64(instr.Data[1:9]),
			Source:      c.keys[instr.Accounts[0]],
			Mint:        c.keys[instr.Accounts[1]],
			Destination: c.keys[instr.Accounts[2]],
			Authority:   c.keys[instr.Accounts[3]],
		}
		ev.Decimals = c.decimals[ev.Mint]
		return ev, true
	}
	return TransferEvent{}, false
}

// collectTransfers harvests all transfer-shaped inner instructions spawned by
// the top-level instruction at index, in CPI order.
func (c *Classifier) collectTransfers(index int) []TransferEvent {
	var events []TransferEvent
	for _, instr := range c.innerInstructionsAt(index) {
		if ev, ok := c.decodeTransfer(instr); ok {
			events = append(events, ev)
		}
	}
	return events
}

// traceAggregatorSpan recovers the first-hop source and last-hop destination
// transfers under an aggregator instruction. Aggregator routes have no single
// pool account to decode, but their transfer CPIs are ordered: the first
// transfer funds the route and the last one pays the user out.
//
// When the final transfer's authority is the watched wallet itself it is a
// return-leg artifact (a wrap/unwrap shuffle appended after the economically
// relevant swap), so the tracer steps back one transfer. If stepping back
// leaves fewer than two usable events the transaction cannot be classified.
func (c *Classifier) traceAggregatorSpan(index int) (first, last TransferEvent, err error) {
	events := c.collectTransfers(index)
	if len(events) < 2 {
		return first, last, fmt.Errorf("%w: %d transfer(s) under aggregator instruction", ErrInsufficientTransferData, len(events))
	}

	first = events[0]
	lastIdx := len(events) - 1
	if events[lastIdx].Authority.Equals(c.target) {
		lastIdx--
	}
	if lastIdx <= 0 {
		return first, last, fmt.Errorf("%w: only self-transfers remain after the first hop", ErrInsufficientTransferData)
	}
	return first, events[lastIdx], nil
}

// decodeJupiterRouteEvents scans the aggregator's inner instructions for the
// self-CPI event instruction and Borsh-decodes each hop.
func (c *Classifier) decodeJupiterRouteEvents(index int) []JupiterRouteEvent {
	var events []JupiterRouteEvent
	for _, instr := range c.innerInstructionsAt(index) {
		if !c.isJupiterRouteEventInstruction(instr) {
			continue
		}
		decodedBytes, err := base58.Decode(instr.Data.String())
		if err != nil || len(decodedBytes) < 16 {
			continue
		}
		var event JupiterRouteEvent
		decoder := ag_binary.NewBorshDecoder(decodedBytes[16:])
		if err := decoder.Decode(&event); err != nil {
			c.log.Debugf("jupiter route event decode failed: %v", err)
			continue
		}
		events = append(events, event)
	}
	return events
}
