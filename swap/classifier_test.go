package swap

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/AlekSi/pointer"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Shared synthetic-transaction fixtures. Account key layout used across the
// classifier tests:
//
//	0 target wallet (fee payer)
//	1 target wrapped-SOL token account
//	2 pool wrapped-SOL vault
//	3 pool token vault
//	4 target token account
//	5 token program
//	6 venue program (varies per test)
//	7 pool authority
var (
	targetWallet = solana.MustPublicKeyFromBase58("5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1")
	memeMint     = solana.MustPublicKeyFromBase58("EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm")

	targetWSOLAcc  = solana.MustPublicKeyFromBase58("8psNvWTrdNTiVRNzAgsou9kETXNJm2SXZyaKuJraVRtf")
	poolWSOLVault  = solana.MustPublicKeyFromBase58("7YttLkHDoNj9wyDur5pM1ejNaAvT9X4eqaYcHQqtj2G5")
	poolTokenVault = solana.MustPublicKeyFromBase58("36c6YqAwyGKQG66XEp2dJc5JqjaBNv7sVghEtJv4c7u6")
	targetTokenAcc = solana.MustPublicKeyFromBase58("GThUX1Atko4tqhN2NaiTazWSeFWMuiUvfFnyJyUghFMJ")
	poolAuthority  = solana.MustPublicKeyFromBase58("HWHvQhFmJB3NUcu1aihKmrKegfVxBEHzwVX6yZCKEsi1")
)

type fakeReader struct {
	accounts map[solana.PublicKey]*Account
}

func (f *fakeReader) GetAccount(_ context.Context, address solana.PublicKey) (*Account, error) {
	return f.accounts[address], nil
}

func testKeys(venueProgram solana.PublicKey) []solana.PublicKey {
	return []solana.PublicKey{
		targetWallet,
		targetWSOLAcc,
		poolWSOLVault,
		poolTokenVault,
		targetTokenAcc,
		solana.TokenProgramID,
		venueProgram,
		poolAuthority,
	}
}

func transferData(amount uint64) []byte {
	data := make([]byte, 9)
	data[0] = 3
	binary.LittleEndian.PutUint64(data[1:], amount)
	return data
}

func tokenBalance(accountIndex uint16, mint, owner solana.PublicKey, ui float64, decimals uint8) rpc.TokenBalance {
	return rpc.TokenBalance{
		AccountIndex: accountIndex,
		Mint:         mint,
		Owner:        &owner,
		UiTokenAmount: &rpc.UiTokenAmount{
			UiAmount: pointer.ToFloat64(ui),
			Decimals: decimals,
		},
	}
}

func newTestClassifier(t *testing.T, keys []solana.PublicKey, instrs []solana.CompiledInstruction, meta *rpc.TransactionMeta, reader AccountReader) *Classifier {
	t.Helper()
	tx := &solana.Transaction{
		Message: solana.Message{
			AccountKeys:  keys,
			Instructions: instrs,
		},
	}
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	c, err := NewClassifier(tx, meta, targetWallet, reader, log)
	require.NoError(t, err)
	return c
}

// pumpfunBuyMeta builds a transaction where the target spends 1 SOL into a
// transfer-leg venue and receives 1000 meme tokens.
func pumpfunBuyMeta(solIn, tokenOut uint64) ([]solana.CompiledInstruction, *rpc.TransactionMeta) {
	instrs := []solana.CompiledInstruction{
		{ProgramIDIndex: 6, Accounts: []uint16{1, 2, 3, 4, 7}},
	}
	meta := &rpc.TransactionMeta{
		LogMessages: []string{
			"Program " + PUMP_FUN_PROGRAM_ID.String() + " invoke [1]",
			"Program log: Instruction: Transfer",
		},
		InnerInstructions: []rpc.InnerInstruction{
			{
				Index: 0,
				Instructions: []rpc.CompiledInstruction{
					{ProgramIDIndex: 5, Accounts: []uint16{1, 2, 0}, Data: transferData(solIn)},
					{ProgramIDIndex: 5, Accounts: []uint16{3, 4, 7}, Data: transferData(tokenOut)},
				},
			},
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
	return instrs, meta
}

func TestClassifyTransferVenueBuy(t *testing.T) {
	instrs, meta := pumpfunBuyMeta(1_000_000_000, 1_000_000_000)
	c := newTestClassifier(t, testKeys(PUMP_FUN_PROGRAM_ID), instrs, meta, nil)

	result, err := c.Classify(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PUMP_FUN, result.Venue)
	assert.Equal(t, ClassBuy, result.Classification)
	assert.Equal(t, NATIVE_SOL_MINT, result.From.Mint)
	assert.Equal(t, uint64(1_000_000_000), result.From.Amount)
	assert.Equal(t, memeMint, result.To.Mint)
	assert.Equal(t, uint64(1_000_000_000), result.To.Amount)
	assert.Equal(t, uint8(6), result.To.Decimals)
	assert.Equal(t, 1.0, result.NativeAmount())
}

func TestClassifyTransferVenueSell(t *testing.T) {
	// Reverse the buy: target sends tokens, receives SOL.
	instrs := []solana.CompiledInstruction{
		{ProgramIDIndex: 6, Accounts: []uint16{1, 2, 3, 4, 7}},
	}
	meta := &rpc.TransactionMeta{
		LogMessages: []string{
			"Program " + PUMP_FUN_PROGRAM_ID.String() + " invoke [1]",
			"Program log: Instruction: Transfer",
		},
		InnerInstructions: []rpc.InnerInstruction{
			{
				Index: 0,
				Instructions: []rpc.CompiledInstruction{
					{ProgramIDIndex: 5, Accounts: []uint16{4, 3, 0}, Data: transferData(1_000_000_000)},
					{ProgramIDIndex: 5, Accounts: []uint16{2, 1, 7}, Data: transferData(950_000_000)},
				},
			},
		},
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(1, NATIVE_SOL_MINT, targetWallet, 4, 9),
			tokenBalance(4, memeMint, targetWallet, 1000, 6),
		},
		PostTokenBalances: []rpc.TokenBalance{
			tokenBalance(1, NATIVE_SOL_MINT, targetWallet, 4.95, 9),
			tokenBalance(4, memeMint, targetWallet, 0, 6),
		},
	}
	c := newTestClassifier(t, testKeys(PUMP_FUN_PROGRAM_ID), instrs, meta, nil)

	result, err := c.Classify(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ClassSell, result.Classification)
	assert.Equal(t, memeMint, result.From.Mint)
	assert.Equal(t, NATIVE_SOL_MINT, result.To.Mint)
	assert.Equal(t, uint64(950_000_000), result.To.Amount)
}

func TestClassifyNoDex(t *testing.T) {
	meta := &rpc.TransactionMeta{
		LogMessages: []string{
			"Program 11111111111111111111111111111111 invoke [1]",
			"Program 11111111111111111111111111111111 success",
		},
	}
	c := newTestClassifier(t, testKeys(PUMP_FUN_PROGRAM_ID), nil, meta, nil)

	_, err := c.Classify(context.Background())
	assert.ErrorIs(t, err, ErrNoDex)
}

func TestClassifyCircularSwap(t *testing.T) {
	// Both attributable transfers carry the same mint: a wrap/unwrap shuffle,
	// not a swap.
	instrs := []solana.CompiledInstruction{
		{ProgramIDIndex: 6, Accounts: []uint16{1, 2, 7}},
	}
	meta := &rpc.TransactionMeta{
		LogMessages: []string{
			"Program " + PUMP_FUN_PROGRAM_ID.String() + " invoke [1]",
			"Program log: Instruction: Transfer",
		},
		InnerInstructions: []rpc.InnerInstruction{
			{
				Index: 0,
				Instructions: []rpc.CompiledInstruction{
					{ProgramIDIndex: 5, Accounts: []uint16{1, 2, 0}, Data: transferData(1_000_000_000)},
					{ProgramIDIndex: 5, Accounts: []uint16{2, 1, 7}, Data: transferData(1_000_000_000)},
				},
			},
		},
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(1, NATIVE_SOL_MINT, targetWallet, 5, 9),
		},
		PostTokenBalances: []rpc.TokenBalance{
			tokenBalance(1, NATIVE_SOL_MINT, targetWallet, 5, 9),
		},
	}
	c := newTestClassifier(t, testKeys(PUMP_FUN_PROGRAM_ID), instrs, meta, nil)

	_, err := c.Classify(context.Background())
	assert.ErrorIs(t, err, ErrCircularSwap)
}

func TestClassifyInsufficientTransfers(t *testing.T) {
	instrs := []solana.CompiledInstruction{
		{ProgramIDIndex: 6, Accounts: []uint16{1, 2, 7}},
	}
	meta := &rpc.TransactionMeta{
		LogMessages: []string{
			"Program " + PUMP_FUN_PROGRAM_ID.String() + " invoke [1]",
			"Program log: Instruction: Transfer",
		},
		InnerInstructions: []rpc.InnerInstruction{
			{
				Index: 0,
				Instructions: []rpc.CompiledInstruction{
					{ProgramIDIndex: 5, Accounts: []uint16{1, 2, 0}, Data: transferData(1_000_000_000)},
				},
			},
		},
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(1, NATIVE_SOL_MINT, targetWallet, 5, 9),
		},
	}
	c := newTestClassifier(t, testKeys(PUMP_FUN_PROGRAM_ID), instrs, meta, nil)

	_, err := c.Classify(context.Background())
	assert.ErrorIs(t, err, ErrInsufficientTransferData)
}

func TestClassifierSurvivesOutOfRangeAccountIndices(t *testing.T) {
	// Malformed instructions arrive off the wire; indices past the key table
	// must degrade to a classification error, never a panic.
	instrs := []solana.CompiledInstruction{
		// Transfer shape with a source index far beyond the 8-entry table.
		{ProgramIDIndex: 5, Accounts: []uint16{200, 1, 0}, Data: transferData(1)},
		// TransferChecked shape with an out-of-range mint index.
		{ProgramIDIndex: 5, Accounts: []uint16{1, 200, 4, 0}, Data: append([]byte{12}, transferData(1)[1:]...)},
		// Program index itself out of range.
		{ProgramIDIndex: 250, Accounts: []uint16{1, 2, 0}, Data: transferData(1)},
	}
	meta := &rpc.TransactionMeta{
		LogMessages: []string{
			"Program " + PUMP_FUN_PROGRAM_ID.String() + " invoke [1]",
			"Program log: Instruction: Transfer",
		},
		InnerInstructions: []rpc.InnerInstruction{
			{
				Index: 0,
				Instructions: []rpc.CompiledInstruction{
					{ProgramIDIndex: 5, Accounts: []uint16{200, 1, 0}, Data: transferData(1)},
					{ProgramIDIndex: 250, Accounts: []uint16{1, 2, 0}, Data: transferData(1)},
				},
			},
		},
	}

	c := newTestClassifier(t, testKeys(PUMP_FUN_PROGRAM_ID), instrs, meta, nil)
	_, err := c.Classify(context.Background())
	assert.Error(t, err)
}

func TestClassifyIsDeterministic(t *testing.T) {
	instrs, meta := pumpfunBuyMeta(1_000_000_000, 1_000_000_000)
	c := newTestClassifier(t, testKeys(PUMP_FUN_PROGRAM_ID), instrs, meta, nil)

	first, err := c.Classify(context.Background())
	require.NoError(t, err)
	second, err := c.Classify(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Venue, second.Venue)
	assert.Equal(t, first.Classification, second.Classification)
	assert.Equal(t, first.Pool, second.Pool)
	assert.Equal(t, first.From, second.From)
	assert.Equal(t, first.To, second.To)
}

func TestClassifierSkipsNilTokenAmounts(t *testing.T) {
	instrs, meta := pumpfunBuyMeta(1_000_000_000, 1_000_000_000)
	meta.PreTokenBalances = append(meta.PreTokenBalances, rpc.TokenBalance{
		AccountIndex: 2,
		Mint:         memeMint,
	})

	c := newTestClassifier(t, testKeys(PUMP_FUN_PROGRAM_ID), instrs, meta, nil)
	result, err := c.Classify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ClassBuy, result.Classification)
}

func TestLamportDeltaFallback(t *testing.T) {
	// Native leg funded straight from SOL: no wrapped token balances survive,
	// the target's lamport change is the only evidence.
	meta := &rpc.TransactionMeta{
		PreBalances:  []uint64{10_000_000_000},
		PostBalances: []uint64{8_995_000_000},
	}
	c := newTestClassifier(t, testKeys(PUMP_FUN_PROGRAM_ID), nil, meta, nil)

	d := c.deltaFor(NATIVE_SOL_MINT)
	assert.Equal(t, -1.005, d.Amount)
	assert.Equal(t, uint8(9), d.Decimals)
	assert.False(t, d.LowConfidence)
}
