package trader

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/franco-bianco/solcopy-go/swap"
)

// AccountService adapts the RPC client to the pool locator's account
// probing. A missing account is reported as (nil, nil) so probing can
// move on to the next candidate.
type AccountService struct {
	client *rpc.Client
}

func NewAccountService(client *rpc.Client) *AccountService {
	return &AccountService{client: client}
}

func (s *AccountService) GetAccount(ctx context.Context, address solana.PublicKey) (*swap.Account, error) {
	res, err := s.client.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		if err == rpc.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	if res == nil || res.Value == nil {
		return nil, nil
	}
	return &swap.Account{
		Owner: res.Value.Owner,
		Data:  res.Value.Data.GetBinary(),
	}, nil
}
