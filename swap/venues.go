package swap

import (
	"github.com/gagliardetto/solana-go"
)

// Venue identifies a DEX protocol we know how to classify.
type Venue string

const (
	RAYDIUM_V4   Venue = "RaydiumV4"
	RAYDIUM_CLMM Venue = "RaydiumCLMM"
	RAYDIUM_CPMM Venue = "RaydiumCPMM"
	ORCA         Venue = "Orca"
	METEORA_DLMM Venue = "MeteoraDLMM"
	PUMP_FUN     Venue = "Pumpfun"
	JUPITER      Venue = "Jupiter"
)

var (
	RAYDIUM_V4_PROGRAM_ID   = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	RAYDIUM_CLMM_PROGRAM_ID = solana.MustPublicKeyFromBase58("CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK")
	RAYDIUM_CPMM_PROGRAM_ID = solana.MustPublicKeyFromBase58("CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C")
	ORCA_PROGRAM_ID         = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")
	METEORA_DLMM_PROGRAM_ID = solana.MustPublicKeyFromBase58("LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo")
	PUMP_FUN_PROGRAM_ID     = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	JUPITER_PROGRAM_ID      = solana.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")

	// Wrapped SOL, the native leg of every Buy/Sell.
	NATIVE_SOL_MINT = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

// capability describes how a venue's swaps are located within a transaction.
type capability struct {
	program solana.PublicKey
	// aggregator venues have no single pool account; legs come from tracing
	// the ordered transfer CPIs under the router instruction.
	aggregator bool
	// layout names the pool account layout we can decode, empty when the
	// venue is classified from transfer legs alone.
	layout poolLayout
}

type poolLayout int

const (
	layoutNone poolLayout = iota
	layoutRaydiumV4
	layoutWhirlpool
)

// venueOrder is the identification priority. The aggregator comes first:
// a routed swap mentions the underlying AMM programs too, and the router is
// the one that describes the user-facing legs.
var venueOrder = []Venue{JUPITER, RAYDIUM_V4, RAYDIUM_CLMM, RAYDIUM_CPMM, ORCA, METEORA_DLMM, PUMP_FUN}

var venueCapabilities = map[Venue]capability{
	JUPITER:      {program: JUPITER_PROGRAM_ID, aggregator: true},
	RAYDIUM_V4:   {program: RAYDIUM_V4_PROGRAM_ID, layout: layoutRaydiumV4},
	RAYDIUM_CLMM: {program: RAYDIUM_CLMM_PROGRAM_ID},
	RAYDIUM_CPMM: {program: RAYDIUM_CPMM_PROGRAM_ID},
	ORCA:         {program: ORCA_PROGRAM_ID, layout: layoutWhirlpool},
	METEORA_DLMM: {program: METEORA_DLMM_PROGRAM_ID},
	PUMP_FUN:     {program: PUMP_FUN_PROGRAM_ID},
}
