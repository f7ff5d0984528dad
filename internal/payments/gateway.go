package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/shreyanshu1966/ecommerce-elearning-api/internal/domain"
)

// Logger defines the logging contract for gateway operations.
type Logger func(ctx context.Context, event string, fields map[string]any)

// CreateIntentRequest describes the payment intent to open with the provider.
type CreateIntentRequest struct {
	// AmountMajor is the order total in major currency units.
	AmountMajor float64
	Currency    string
	ReceiptID   string
}

// Intent is the provider-side payment intent a client completes against.
type Intent struct {
	ID       string
	Amount   int64
	Currency string
}

// Gateway abstracts the external payment provider.
type Gateway interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (Intent, error)
	// VerifySignature reports whether the callback signature matches the
	// provider's HMAC over the intent and payment references.
	VerifySignature(orderRef, paymentRef, signature string) bool
}

// HTTPGatewayConfig configures the HTTPGateway.
type HTTPGatewayConfig struct {
	BaseURL string
	KeyID   string
	Secret  string
	Client  *http.Client
	Logger  Logger
	Timeout time.Duration
}

// HTTPGateway implements Gateway against a provider exposing a JSON
// order-intent endpoint authenticated with key id / secret basic auth.
type HTTPGateway struct {
	baseURL string
	keyID   string
	secret  []byte
	client  *http.Client
	logger  Logger
}

// NewHTTPGateway constructs the gateway adapter from configuration.
func NewHTTPGateway(cfg HTTPGatewayConfig) (*HTTPGateway, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("payments: base url is required")
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errors.New("payments: key id is required")
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("payments: secret is required")
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &HTTPGateway{
		baseURL: baseURL,
		keyID:   keyID,
		secret:  []byte(secret),
		client:  client,
		logger:  logger,
	}, nil
}

type intentRequestBody struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
}

type intentResponseBody struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// CreateIntent opens a payment intent with the provider for the given amount.
// The major-unit amount is converted to minor units on the wire.
func (g *HTTPGateway) CreateIntent(ctx context.Context, req CreateIntentRequest) (Intent, error) {
	if g == nil {
		return Intent{}, errors.New("payments: gateway is nil")
	}
	if req.AmountMajor <= 0 {
		return Intent{}, errors.New("payments: amount must be positive")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return Intent{}, errors.New("payments: currency is required")
	}

	body := intentRequestBody{
		Amount:   domain.MinorUnits(req.AmountMajor),
		Currency: currency,
		Receipt:  strings.TrimSpace(req.ReceiptID),
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return Intent{}, fmt.Errorf("payments: marshal intent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return Intent{}, fmt.Errorf("payments: build intent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(g.keyID, string(g.secret))

	resp, err := g.client.Do(httpReq)
	if err != nil {
		g.logger(ctx, "payments.gateway.intent.failed", map[string]any{
			"receipt": body.Receipt,
			"error":   err.Error(),
		})
		return Intent{}, fmt.Errorf("payments: create intent: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Intent{}, fmt.Errorf("payments: read intent response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.logger(ctx, "payments.gateway.intent.rejected", map[string]any{
			"receipt": body.Receipt,
			"status":  resp.StatusCode,
		})
		return Intent{}, fmt.Errorf("payments: create intent: provider returned status %d", resp.StatusCode)
	}

	var decoded intentResponseBody
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Intent{}, fmt.Errorf("payments: decode intent response: %w", err)
	}
	if strings.TrimSpace(decoded.ID) == "" {
		return Intent{}, errors.New("payments: provider response missing intent id")
	}

	g.logger(ctx, "payments.gateway.intent.created", map[string]any{
		"intentId": decoded.ID,
		"amount":   decoded.Amount,
		"currency": decoded.Currency,
	})

	currencyOut := decoded.Currency
	if currencyOut == "" {
		currencyOut = currency
	}
	amountOut := decoded.Amount
	if amountOut == 0 {
		amountOut = body.Amount
	}
	return Intent{ID: decoded.ID, Amount: amountOut, Currency: currencyOut}, nil
}

// VerifySignature checks the provider callback signature: hex encoded
// HMAC-SHA256 over "orderRef|paymentRef" keyed with the shared secret.
// The comparison is constant time.
func (g *HTTPGateway) VerifySignature(orderRef, paymentRef, signature string) bool {
	if g == nil || len(g.secret) == 0 {
		return false
	}
	orderRef = strings.TrimSpace(orderRef)
	paymentRef = strings.TrimSpace(paymentRef)
	signature = strings.TrimSpace(signature)
	if orderRef == "" || paymentRef == "" || signature == "" {
		return false
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, g.secret)
	_, _ = mac.Write([]byte(orderRef + "|" + paymentRef))
	return hmac.Equal(provided, mac.Sum(nil))
}
