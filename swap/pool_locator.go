package swap

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Account is the slice of on-chain account state the locator needs.
type Account struct {
	Owner solana.PublicKey
	Data  []byte
}

// AccountReader fetches account state. A nil result with a nil error means
// the account does not exist.
type AccountReader interface {
	GetAccount(ctx context.Context, address solana.PublicKey) (*Account, error)
}

// locatePools walks the transaction's top-level instructions in order and,
// within each instruction, its referenced accounts in order, probing each
// account's owner through the reader. Every account owned by the venue's
// program is decoded as a pool; earliest match first. A multi-hop route
// surfaces more than one pool, in hop order.
//
// Returns nil when no instruction references a pool-owned account or when
// the reads fail; the caller treats that as "not a swap".
func (c *Classifier) locatePools(ctx context.Context, venue Venue) ([]*PoolInfo, error) {
	vcap := venueCapabilities[venue]
	if vcap.layout == layoutNone {
		return nil, nil
	}

	var pools []*PoolInfo
	seen := make(map[solana.PublicKey]bool)

	for _, instr := range c.tx.Message.Instructions {
		if len(instr.Accounts) == 0 || int(instr.ProgramIDIndex) >= len(c.keys) {
			continue
		}
		// Only instructions invoking the venue's program reference its pools;
		// probing every account in unrelated instructions would waste reads.
		if !c.keys[instr.ProgramIDIndex].Equals(vcap.program) {
			continue
		}
		for _, accountIdx := range instr.Accounts {
			if int(accountIdx) >= len(c.keys) {
				continue
			}
			address := c.keys[accountIdx]
			if seen[address] {
				continue
			}
			seen[address] = true

			account, err := c.reader.GetAccount(ctx, address)
			if err != nil {
				c.log.Debugf("account read %s failed: %v", address, err)
				continue
			}
			if account == nil || !account.Owner.Equals(vcap.program) {
				continue
			}

			pool, err := decodePool(vcap.layout, venue, address, account.Data)
			if err != nil {
				return nil, err
			}
			pools = append(pools, pool)
			// One pool per instruction: the rest of the account list belongs
			// to vaults, authorities and user accounts of the same hop.
			break
		}
	}
	return pools, nil
}
