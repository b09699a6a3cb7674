package swap

import (
	"math"

	"github.com/gagliardetto/solana-go"
)

// DefaultDecimals is the rounding precision used when a mint's decimals
// cannot be resolved from the transaction's balance records. 9 matches the
// native asset; for arbitrary tokens the resulting delta is low-confidence.
const DefaultDecimals = 9

// BalanceRecord is one token-balance snapshot entry for a single account in
// a transaction, either pre or post execution.
type BalanceRecord struct {
	Mint     solana.PublicKey
	Owner    solana.PublicKey
	UiAmount float64
	Decimals uint8
}

// Delta is a signed per-mint balance change in UI units.
type Delta struct {
	Mint     solana.PublicKey
	Amount   float64
	Decimals uint8
	// LowConfidence marks deltas rounded with DefaultDecimals because the
	// mint's declared decimals never appeared in the balance records.
	LowConfidence bool
}

// BalanceDiff computes post-pre for one mint, restricted to records owned by
// ownerFilter when it is non-zero. Accounts absent from one side count as
// zero on that side. The result is rounded to the mint's decimals so that
// float noise from the RPC's uiAmount fields cannot produce false positives.
func BalanceDiff(pre, post []BalanceRecord, mint solana.PublicKey, ownerFilter solana.PublicKey) Delta {
	sum := func(records []BalanceRecord) (float64, uint8, bool) {
		total := 0.0
		var decimals uint8
		resolved := false
		for _, r := range records {
			if !r.Mint.Equals(mint) {
				continue
			}
			if !ownerFilter.IsZero() && !r.Owner.Equals(ownerFilter) {
				continue
			}
			total += r.UiAmount
			decimals = r.Decimals
			resolved = true
		}
		return total, decimals, resolved
	}

	preTotal, preDec, preOK := sum(pre)
	postTotal, postDec, postOK := sum(post)

	decimals := preDec
	resolved := preOK
	if postOK {
		decimals = postDec
		resolved = true
	}

	d := Delta{Mint: mint, Decimals: decimals}
	if !resolved {
		d.Decimals = DefaultDecimals
		d.LowConfidence = true
	}
	d.Amount = RoundToDecimals(postTotal-preTotal, d.Decimals)
	return d
}

// RoundToDecimals rounds a UI amount to the given number of decimal places.
func RoundToDecimals(value float64, decimals uint8) float64 {
	factor := math.Pow10(int(decimals))
	return math.Round(value*factor) / factor
}

// BaseUnits converts a UI amount to base units, rounding to the nearest unit.
func BaseUnits(uiAmount float64, decimals uint8) uint64 {
	if uiAmount <= 0 {
		return 0
	}
	return uint64(math.Round(uiAmount * math.Pow10(int(decimals))))
}

// UiUnits converts base units to a UI amount.
func UiUnits(amount uint64, decimals uint8) float64 {
	return float64(amount) / math.Pow10(int(decimals))
}
