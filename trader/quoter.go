package trader

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/franco-bianco/solcopy-go/jupiter"
)

// QuoteService prices a prospective sell through the aggregator API and
// discounts the quoted output by the slippage allowance, matching what a
// real submission would accept at minimum.
type QuoteService struct {
	jup *jupiter.Client
}

func NewQuoteService(jup *jupiter.Client) *QuoteService {
	return &QuoteService{jup: jup}
}

func (s *QuoteService) Quote(ctx context.Context, mintIn, mintOut solana.PublicKey, amountIn uint64, slippageBps int) (uint64, error) {
	quote, err := s.jup.GetQuote(ctx, mintIn.String(), mintOut.String(), amountIn, slippageBps)
	if err != nil {
		return 0, fmt.Errorf("quote %s -> %s: %w", mintIn, mintOut, err)
	}
	out, err := quote.OutAmountBase()
	if err != nil {
		return 0, fmt.Errorf("quote out amount: %w", err)
	}
	return out * uint64(10000-slippageBps) / 10000, nil
}
