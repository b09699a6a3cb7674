package trader

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// SPL token account layout: amount sits at bytes 64..72, little endian.
const tokenAmountOffset = 64

// ReserveService reads the current token amounts held by a pool's two
// vault accounts in a single batched call.
type ReserveService struct {
	client *rpc.Client
}

func NewReserveService(client *rpc.Client) *ReserveService {
	return &ReserveService{client: client}
}

func (s *ReserveService) Reserves(ctx context.Context, baseVault, quoteVault solana.PublicKey) (uint64, uint64, error) {
	res, err := s.client.GetMultipleAccountsWithOpts(ctx, []solana.PublicKey{baseVault, quoteVault}, &rpc.GetMultipleAccountsOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("fetch vault accounts: %w", err)
	}
	if len(res.Value) != 2 || res.Value[0] == nil || res.Value[1] == nil {
		return 0, 0, fmt.Errorf("vault accounts not found: %s / %s", baseVault, quoteVault)
	}

	base, err := tokenAccountAmount(res.Value[0].Data.GetBinary())
	if err != nil {
		return 0, 0, fmt.Errorf("base vault %s: %w", baseVault, err)
	}
	quote, err := tokenAccountAmount(res.Value[1].Data.GetBinary())
	if err != nil {
		return 0, 0, fmt.Errorf("quote vault %s: %w", quoteVault, err)
	}
	return base, quote, nil
}

func tokenAccountAmount(data []byte) (uint64, error) {
	if len(data) < tokenAmountOffset+8 {
		return 0, fmt.Errorf("token account data too short: %d bytes", len(data))
	}
	return binary.LittleEndian.Uint64(data[tokenAmountOffset : tokenAmountOffset+8]), nil
}
