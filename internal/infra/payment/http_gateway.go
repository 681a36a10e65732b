package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"school-payment-ledger/internal/config"
	"school-payment-ledger/internal/domain"
	"school-payment-ledger/internal/domain/model"
	"school-payment-ledger/internal/domain/ports/adapter"
)

// Ensure compile-time conformance
var _ adapter.PaymentGateway = (*HTTPGateway)(nil)

// HTTPGateway talks to the external payment provider over its JSON API and
// authenticates webhook deliveries by HMAC signature.
type HTTPGateway struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	allowInsecure bool // dev only: accept unsigned webhooks when no secret is set
	client        *http.Client
	log           *zerolog.Logger
}

func NewHTTPGateway(cfg config.GatewayConfig, allowInsecure bool, logger *zerolog.Logger) *HTTPGateway {
	if cfg.WebhookSecret == "" && allowInsecure {
		logger.Warn().Msg("gateway webhook secret not set; signature verification DISABLED (dev only)")
	}
	return &HTTPGateway{
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		webhookSecret: cfg.WebhookSecret,
		allowInsecure: allowInsecure,
		client:        &http.Client{Timeout: cfg.Timeout},
		log:           logger,
	}
}

func (g *HTTPGateway) Name() string { return "gateway" }

type intentRequest struct {
	Amount   string            `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

type intentResponse struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	Error        string `json:"error"`
}

func (g *HTTPGateway) CreateIntent(ctx context.Context, req adapter.CreateIntentRequest) (string, string, error) {
	body, err := json.Marshal(intentRequest{
		Amount:   req.Amount.StringFixed(2),
		Currency: req.Currency,
		Metadata: map[string]string{
			"student_id":     req.StudentID,
			"installment_id": req.InstallmentID,
			"description":    req.Description,
		},
	})
	if err != nil {
		return "", "", fmt.Errorf("marshal intent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/intents", bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("build intent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("%w: read response: %v", domain.ErrGatewayUnavailable, err)
	}

	var ir intentResponse
	if err := json.Unmarshal(raw, &ir); err != nil {
		return "", "", fmt.Errorf("%w: decode response: %v", domain.ErrGatewayUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("%w: status %d: %s", domain.ErrGatewayUnavailable, resp.StatusCode, ir.Error)
	}
	if ir.IntentID == "" {
		return "", "", fmt.Errorf("%w: empty intent id", domain.ErrGatewayUnavailable)
	}
	return ir.IntentID, ir.ClientSecret, nil
}

type webhookEvent struct {
	IntentID      string `json:"intent_id"`
	Status        string `json:"status"` // succeeded | failed
	PaymentMethod string `json:"payment_method"`
	FailureReason string `json:"failure_reason"`
}

// VerifyWebhook rejects any payload whose signature does not match the
// configured secret before a single byte of it is interpreted. With no secret
// configured the check is bypassed only in the explicitly insecure dev mode.
func (g *HTTPGateway) VerifyWebhook(payload []byte, signature string) (*model.PaymentOutcome, error) {
	if g.webhookSecret == "" {
		if !g.allowInsecure {
			return nil, domain.ErrGatewayVerification
		}
		g.log.Warn().Msg("accepting unsigned webhook in insecure dev mode")
	} else if !VerifySignature(g.webhookSecret, payload, signature) {
		return nil, domain.ErrGatewayVerification
	}

	return parseEvent(payload)
}

// parseEvent translates a verified webhook body into a PaymentOutcome.
func parseEvent(payload []byte) (*model.PaymentOutcome, error) {
	var ev webhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: malformed payload", domain.ErrGatewayVerification)
	}
	if ev.IntentID == "" {
		return nil, fmt.Errorf("%w: missing intent id", domain.ErrGatewayVerification)
	}

	switch ev.Status {
	case "succeeded":
		return &model.PaymentOutcome{IntentID: ev.IntentID, Succeeded: true, Method: ev.PaymentMethod}, nil
	case "failed":
		return &model.PaymentOutcome{IntentID: ev.IntentID, Succeeded: false, Reason: ev.FailureReason}, nil
	default:
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrGatewayVerification, ev.Status)
	}
}

type intentStatusResponse struct {
	IntentID      string `json:"intent_id"`
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method"`
	FailureReason string `json:"failure_reason"`
}

// QueryIntent fetches the provider-side outcome of an intent; used by the
// reconciler when the webhook for it never arrived.
func (g *HTTPGateway) QueryIntent(ctx context.Context, intentID string) (*model.PaymentOutcome, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/v1/intents/"+intentID, nil)
	if err != nil {
		return nil, fmt.Errorf("build intent query: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var sr intentStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrGatewayUnavailable, err)
	}

	switch sr.Status {
	case "succeeded":
		return &model.PaymentOutcome{IntentID: intentID, Succeeded: true, Method: sr.PaymentMethod}, nil
	case "failed":
		return &model.PaymentOutcome{IntentID: intentID, Succeeded: false, Reason: sr.FailureReason}, nil
	default:
		// still pending at the provider
		return nil, nil
	}
}
