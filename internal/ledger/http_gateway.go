package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Recursion-Labs/Brickchain-sub001/internal/utils"
)

// RejectedError is returned when the ledger refuses an operation outright
// (HTTP 4xx). It is not retryable.
type RejectedError struct {
	Status  int
	Message string
}

func (r *RejectedError) Error() string {
	return fmt.Sprintf("ledger rejected request (%d): %s", r.Status, r.Message)
}

// HTTPGateway talks JSON to the ledger node's settlement API.
type HTTPGateway struct {
	BaseURL      *url.URL
	APIKey       string
	HTTPClient   *http.Client
	MaxRetries   int           // how many times to retry on timeout / 5xx
	RetryInitial time.Duration // initial backoff
}

func NewHTTPGateway(rawBaseURL, apiKey string, timeout time.Duration, maxRetries int, retryInitial time.Duration) (*HTTPGateway, error) {
	parsed, err := url.Parse(rawBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger base URL: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if retryInitial <= 0 {
		retryInitial = 500 * time.Millisecond
	}
	return &HTTPGateway{
		BaseURL:      parsed,
		APIKey:       apiKey,
		HTTPClient:   &http.Client{Timeout: timeout},
		MaxRetries:   maxRetries,
		RetryInitial: retryInitial,
	}, nil
}

type tokenizeRequest struct {
	PropertyID  string `json:"property_id"`
	TotalShares int64  `json:"total_shares"`
}

type tokenizeResponse struct {
	OnChainID string `json:"on_chain_id"`
}

type lockFundsRequest struct {
	EscrowID string  `json:"escrow_id"`
	BuyerID  string  `json:"buyer_id"`
	Amount   float64 `json:"amount"`
}

type settleRequest struct {
	EscrowID string `json:"escrow_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (g *HTTPGateway) TokenizeProperty(ctx context.Context, propertyID uuid.UUID, totalShares int64, idemKey string) (string, error) {
	var out tokenizeResponse
	err := g.doRequest(ctx, "POST", "tokenize", tokenizeRequest{
		PropertyID:  propertyID.String(),
		TotalShares: totalShares,
	}, &out, idemKey)
	if err != nil {
		return "", err
	}
	return out.OnChainID, nil
}

func (g *HTTPGateway) LockFunds(ctx context.Context, escrowID uuid.UUID, buyerID uuid.UUID, amount float64, idemKey string) error {
	return g.doRequest(ctx, "POST", "escrow/lock", lockFundsRequest{
		EscrowID: escrowID.String(),
		BuyerID:  buyerID.String(),
		Amount:   amount,
	}, nil, idemKey)
}

func (g *HTTPGateway) FinalizeTransfer(ctx context.Context, escrowID uuid.UUID, idemKey string) error {
	return g.doRequest(ctx, "POST", "escrow/finalize", settleRequest{EscrowID: escrowID.String()}, nil, idemKey)
}

func (g *HTTPGateway) ReleaseLock(ctx context.Context, escrowID uuid.UUID, idemKey string) error {
	return g.doRequest(ctx, "POST", "escrow/release", settleRequest{EscrowID: escrowID.String()}, nil, idemKey)
}

// doRequest builds, executes and parses a request, retrying timeouts and 5xx
// responses with exponential backoff. The idempotency key makes the retries
// safe on the ledger side.
func (g *HTTPGateway) doRequest(ctx context.Context, method, reqPath string, body any, out any, idemKey string) error {
	var attempt int
	backoff := g.RetryInitial

	for {
		err := g.doOnce(ctx, method, reqPath, body, out, idemKey)
		if err == nil {
			return nil
		}

		var rejected *RejectedError
		if errors.As(err, &rejected) {
			return err
		}

		if attempt < g.MaxRetries {
			attempt++
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", utils.ErrLedgerUnavailable, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
			continue
		}
		return fmt.Errorf("%w: %v", utils.ErrLedgerUnavailable, err)
	}
}

func (g *HTTPGateway) doOnce(ctx context.Context, method, reqPath string, body any, out any, idemKey string) error {
	u := *g.BaseURL
	u.Path = path.Join(g.BaseURL.Path, reqPath)

	var reqBody io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.APIKey)
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("ledger request timed out: %w", err)
		}
		return fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return g.handleHTTPError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode ledger response: %w", err)
	}
	return nil
}

func (g *HTTPGateway) handleHTTPError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(resp.Body)

	var apiErr errorResponse
	if err := json.Unmarshal(bodyBytes, &apiErr); err != nil {
		apiErr.Error = strings.TrimSpace(string(bodyBytes))
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &RejectedError{Status: resp.StatusCode, Message: apiErr.Error}
	}
	return fmt.Errorf("ledger http error (%d): %s", resp.StatusCode, apiErr.Error)
}
