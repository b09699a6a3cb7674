package swap

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var raydiumPoolAddr = solana.MustPublicKeyFromBase58("58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2")

// raydiumBuyFixture is a Raydium v4 swap where the target spends 1 SOL for
// 1000 meme tokens. Key 8 is the pool account; the instruction references a
// user account first so the locator has to skip past it.
func raydiumBuyFixture() ([]solana.PublicKey, []solana.CompiledInstruction, *rpc.TransactionMeta, *fakeReader) {
	keys := append(testKeys(RAYDIUM_V4_PROGRAM_ID), raydiumPoolAddr)
	instrs := []solana.CompiledInstruction{
		{ProgramIDIndex: 6, Accounts: []uint16{1, 8, 2, 3, 4}},
	}
	meta := &rpc.TransactionMeta{
		LogMessages: []string{
			"Program " + RAYDIUM_V4_PROGRAM_ID.String() + " invoke [1]",
			"Program log: Instruction: Transfer",
		},
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(1, NATIVE_SOL_MINT, targetWallet, 5, 9),
			tokenBalance(4, memeMint, targetWallet, 0, 6),
		},
		PostTokenBalances: []rpc.TokenBalance{
			tokenBalance(1, NATIVE_SOL_MINT, targetWallet, 4, 9),
			tokenBalance(4, memeMint, targetWallet, 1000, 6),
		},
	}
	reader := &fakeReader{accounts: map[solana.PublicKey]*Account{
		// User token account owned by the token program: probed and skipped.
		targetWSOLAcc: {Owner: solana.TokenProgramID},
		raydiumPoolAddr: {
			Owner: RAYDIUM_V4_PROGRAM_ID,
			Data:  raydiumPoolBytes(memeMint, NATIVE_SOL_MINT, poolTokenVault, poolWSOLVault, 6, 9),
		},
	}}
	return keys, instrs, meta, reader
}

func TestLocatePools(t *testing.T) {
	keys, instrs, meta, reader := raydiumBuyFixture()
	c := newTestClassifier(t, keys, instrs, meta, reader)

	pools, err := c.locatePools(context.Background(), RAYDIUM_V4)
	require.NoError(t, err)
	require.Len(t, pools, 1)

	pool := pools[0]
	assert.Equal(t, raydiumPoolAddr, pool.Address)
	assert.Equal(t, RAYDIUM_V4, pool.Venue)
	assert.Equal(t, memeMint, pool.BaseMint)
	assert.Equal(t, NATIVE_SOL_MINT, pool.QuoteMint)
	assert.Equal(t, poolTokenVault, pool.BaseVault)
	assert.Equal(t, poolWSOLVault, pool.QuoteVault)
	assert.Equal(t, uint8(6), pool.BaseDecimals)
	assert.Equal(t, uint8(9), pool.QuoteDecimals)
}

func TestLocatePoolsNoPoolAccount(t *testing.T) {
	keys, instrs, meta, _ := raydiumBuyFixture()
	reader := &fakeReader{accounts: map[solana.PublicKey]*Account{}}
	c := newTestClassifier(t, keys, instrs, meta, reader)

	pools, err := c.locatePools(context.Background(), RAYDIUM_V4)
	require.NoError(t, err)
	assert.Empty(t, pools)
}

func TestClassifyPoolVenueBuy(t *testing.T) {
	keys, instrs, meta, reader := raydiumBuyFixture()
	c := newTestClassifier(t, keys, instrs, meta, reader)

	result, err := c.Classify(context.Background())
	require.NoError(t, err)

	assert.Equal(t, RAYDIUM_V4, result.Venue)
	assert.Equal(t, ClassBuy, result.Classification)
	require.NotNil(t, result.Pool)
	assert.Equal(t, raydiumPoolAddr, result.Pool.Address)
	assert.Equal(t, NATIVE_SOL_MINT, result.From.Mint)
	assert.Equal(t, uint64(1_000_000_000), result.From.Amount)
	assert.Equal(t, memeMint, result.To.Mint)
	assert.Equal(t, uint64(1_000_000_000), result.To.Amount)
	assert.Equal(t, 1.0, result.NativeAmount())
}

func TestClassifyPoolVenueUnknownDirection(t *testing.T) {
	keys, instrs, meta, reader := raydiumBuyFixture()
	// Flat balances: the target touched the pool without moving tokens.
	meta.PostTokenBalances = meta.PreTokenBalances
	c := newTestClassifier(t, keys, instrs, meta, reader)

	_, err := c.Classify(context.Background())
	assert.ErrorIs(t, err, ErrUnknownDirection)
}
