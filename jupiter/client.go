// Package jupiter is a thin client for the Jupiter v6 quote/swap HTTP API.
// It serves two roles: live price quoting for the profit monitor and route
// building for the executor, so no venue-specific swap instructions ever
// have to be assembled here.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const DefaultBaseURL = "https://quote-api.jup.ag/v6"

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Quote is the subset of the quote response the bot consumes. Raw keeps the
// full response because the swap endpoint wants it echoed back verbatim.
type Quote struct {
	InputMint  string          `json:"inputMint"`
	InAmount   string          `json:"inAmount"`
	OutputMint string          `json:"outputMint"`
	OutAmount  string          `json:"outAmount"`
	ErrorMsg   string          `json:"error"`
	Raw        json.RawMessage `json:"-"`
}

// OutAmountBase parses the quoted output amount in base units.
func (q *Quote) OutAmountBase() (uint64, error) {
	return strconv.ParseUint(q.OutAmount, 10, 64)
}

// GetQuote fetches a route quote for swapping amount base units of inputMint
// into outputMint within the given slippage.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	params := url.Values{}
	params.Set("inputMint", inputMint)
	params.Set("outputMint", outputMint)
	params.Set("amount", strconv.FormatUint(amount, 10))
	params.Set("slippageBps", strconv.Itoa(slippageBps))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("quote response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote request: status %d: %s", resp.StatusCode, truncate(body))
	}

	var quote Quote
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("quote decode: %w", err)
	}
	if quote.ErrorMsg != "" {
		return nil, fmt.Errorf("quote error: %s", quote.ErrorMsg)
	}
	quote.Raw = body
	return &quote, nil
}

type swapRequest struct {
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	UserPublicKey             string          `json:"userPublicKey"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	PrioritizationFeeLamports uint64          `json:"prioritizationFeeLamports,omitempty"`
}

type swapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
	Error           string `json:"error"`
}

// BuildSwapTransaction asks the API to assemble the route from a quote into
// a serialized transaction (base64) ready to be signed by user.
func (c *Client) BuildSwapTransaction(ctx context.Context, quote *Quote, user string, priorityFeeLamports uint64) (string, error) {
	payload, err := json.Marshal(swapRequest{
		QuoteResponse:             quote.Raw,
		UserPublicKey:             user,
		WrapAndUnwrapSol:          true,
		PrioritizationFeeLamports: priorityFeeLamports,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("swap request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("swap response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("swap request: status %d: %s", resp.StatusCode, truncate(body))
	}

	var sr swapResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("swap decode: %w", err)
	}
	if sr.Error != "" {
		return "", fmt.Errorf("swap error: %s", sr.Error)
	}
	if sr.SwapTransaction == "" {
		return "", fmt.Errorf("swap response carried no transaction")
	}
	return sr.SwapTransaction, nil
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
