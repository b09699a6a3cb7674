package swap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// PoolInfo is the decoded view of a liquidity pool account: the two mints it
// pairs and, when the layout exposes them, the vault accounts holding the
// reserves for each leg.
type PoolInfo struct {
	Address       solana.PublicKey
	Venue         Venue
	BaseMint      solana.PublicKey
	QuoteMint     solana.PublicKey
	BaseVault     solana.PublicKey
	QuoteVault    solana.PublicKey
	BaseDecimals  uint8
	QuoteDecimals uint8
}

// CounterMint returns the pool leg that is not the native asset. For a
// native/native pool (which should not exist) the base mint is returned.
func (p *PoolInfo) CounterMint() solana.PublicKey {
	if p.BaseMint.Equals(NATIVE_SOL_MINT) {
		return p.QuoteMint
	}
	return p.BaseMint
}

// HasNativeLeg reports whether one side of the pool is wrapped SOL.
func (p *PoolInfo) HasNativeLeg() bool {
	return p.BaseMint.Equals(NATIVE_SOL_MINT) || p.QuoteMint.Equals(NATIVE_SOL_MINT)
}

const raydiumLiquidityStateV4Size = 752

// raydiumFees mirrors the fee block of the Raydium v4 liquidity state.
type raydiumFees struct {
	MinSeparateNumerator   uint64
	MinSeparateDenominator uint64
	TradeFeeNumerator      uint64
	TradeFeeDenominator    uint64
	PnlNumerator           uint64
	PnlDenominator         uint64
	SwapFeeNumerator       uint64
	SwapFeeDenominator     uint64
}

// raydiumOutputData mirrors the running swap/pnl counters of the layout.
// u128 fields are represented as [2]uint64 little-endian limbs.
type raydiumOutputData struct {
	NeedTakePnlBase       uint64
	NeedTakePnlQuote      uint64
	TotalPnlQuote         uint64
	TotalPnlBase          uint64
	PoolTotalDepositQuote [2]uint64
	PoolTotalDepositBase  [2]uint64
	SwapBaseInAmount      [2]uint64
	SwapQuoteOutAmount    [2]uint64
	SwapBase2QuoteFee     uint64
	SwapQuoteInAmount     [2]uint64
	SwapBaseOutAmount     [2]uint64
	SwapQuote2BaseFee     uint64
}

// RaydiumLiquidityStateV4 is the fixed 752-byte Raydium AMM v4 pool account
// layout. Only the mint, vault and decimal fields are consumed here; the rest
// is kept so the struct stays byte-exact for binary.Read.
type RaydiumLiquidityStateV4 struct {
	Status             uint64
	Nonce              uint64
	OrderNum           uint64
	Depth              uint64
	BaseDecimal        uint64
	QuoteDecimal       uint64
	State              uint64
	ResetFlag          uint64
	MinSize            uint64
	VolMaxCutRatio     uint64
	AmountWave         uint64
	BaseLotSize        uint64
	QuoteLotSize       uint64
	MinPriceMultiplier uint64
	MaxPriceMultiplier uint64
	SysDecimalValue    uint64
	Fees               raydiumFees
	Output             raydiumOutputData
	BaseVault          solana.PublicKey
	QuoteVault         solana.PublicKey
	BaseMint           solana.PublicKey
	QuoteMint          solana.PublicKey
	LpMint             solana.PublicKey
	OpenOrders         solana.PublicKey
	MarketID           solana.PublicKey
	MarketProgramID    solana.PublicKey
	TargetOrders       solana.PublicKey
	WithdrawQueue      solana.PublicKey
	LpVault            solana.PublicKey
	Owner              solana.PublicKey
	PnlOwner           solana.PublicKey
}

// DecodeRaydiumLiquidityStateV4 unpacks a Raydium v4 pool account.
func DecodeRaydiumLiquidityStateV4(data []byte) (*RaydiumLiquidityStateV4, error) {
	if len(data) < raydiumLiquidityStateV4Size {
		return nil, fmt.Errorf("raydium v4 state: got %d bytes, want %d", len(data), raydiumLiquidityStateV4Size)
	}
	var state RaydiumLiquidityStateV4
	if err := binary.Read(bytes.NewReader(data[:raydiumLiquidityStateV4Size]), binary.LittleEndian, &state); err != nil {
		return nil, fmt.Errorf("raydium v4 state: %w", err)
	}
	return &state, nil
}

// Orca whirlpool account layout offsets (post 8-byte anchor discriminator).
const (
	whirlpoolAccountSize    = 653
	whirlpoolTokenMintAOff  = 101
	whirlpoolTokenVaultAOff = 133
	whirlpoolTokenMintBOff  = 181
	whirlpoolTokenVaultBOff = 213
)

// decodeWhirlpool extracts the two mints and vaults from an Orca whirlpool
// account. The whirlpool layout does not carry mint decimals; callers resolve
// them from the transaction's balance records instead.
func decodeWhirlpool(address solana.PublicKey, data []byte) (*PoolInfo, error) {
	if len(data) < whirlpoolAccountSize {
		return nil, fmt.Errorf("whirlpool state: got %d bytes, want %d", len(data), whirlpoolAccountSize)
	}
	return &PoolInfo{
		Address:    address,
		Venue:      ORCA,
		BaseMint:   solana.PublicKeyFromBytes(data[whirlpoolTokenMintAOff : whirlpoolTokenMintAOff+32]),
		BaseVault:  solana.PublicKeyFromBytes(data[whirlpoolTokenVaultAOff : whirlpoolTokenVaultAOff+32]),
		QuoteMint:  solana.PublicKeyFromBytes(data[whirlpoolTokenMintBOff : whirlpoolTokenMintBOff+32]),
		QuoteVault: solana.PublicKeyFromBytes(data[whirlpoolTokenVaultBOff : whirlpoolTokenVaultBOff+32]),
	}, nil
}

// decodePool dispatches on the venue's declared layout. Unknown or malformed
// layouts are decode errors and classification fails for the transaction.
func decodePool(layout poolLayout, venue Venue, address solana.PublicKey, data []byte) (*PoolInfo, error) {
	switch layout {
	case layoutRaydiumV4:
		state, err := DecodeRaydiumLiquidityStateV4(data)
		if err != nil {
			return nil, err
		}
		return &PoolInfo{
			Address:       address,
			Venue:         venue,
			BaseMint:      state.BaseMint,
			QuoteMint:     state.QuoteMint,
			BaseVault:     state.BaseVault,
			QuoteVault:    state.QuoteVault,
			BaseDecimals:  uint8(state.BaseDecimal),
			QuoteDecimals: uint8(state.QuoteDecimal),
		}, nil
	case layoutWhirlpool:
		return decodeWhirlpool(address, data)
	default:
		return nil, fmt.Errorf("no pool layout for venue %s", venue)
	}
}
