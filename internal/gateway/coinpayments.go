package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cryptoprofit/internal/apperr"
	"cryptoprofit/internal/types"
)

// Client talks to the CoinPayments-style HTTP API and verifies its inbound
// IPN callbacks. The API signs form-encoded payloads with HMAC-SHA512 over
// the exact raw bytes.
type Client struct {
	apiURL     string
	apiKey     string
	apiSecret  string
	ipnSecret  string
	currency   string
	ipnBaseURL string
	httpClient *http.Client
}

type Config struct {
	APIURL     string
	APIKey     string
	APISecret  string
	IPNSecret  string
	Currency   string
	IPNBaseURL string
}

func NewClient(cfg Config) *Client {
	return &Client{
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		ipnSecret:  cfg.IPNSecret,
		currency:   cfg.Currency,
		ipnBaseURL: strings.TrimRight(cfg.IPNBaseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// IPN is a parsed deposit notification.
type IPN struct {
	TxnID    string
	Amount   decimal.Decimal
	Status   int
	Address  string
	Currency string
}

func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the HMAC over the raw request bytes and compares
// in constant time. An absent header fails closed.
func VerifySignature(secret string, rawBody []byte, header string) bool {
	header = strings.TrimSpace(header)
	if header == "" || secret == "" {
		return false
	}
	expected := Sign(secret, rawBody)
	return hmac.Equal([]byte(strings.ToLower(expected)), []byte(strings.ToLower(header)))
}

func (c *Client) VerifyIPN(rawBody []byte, hmacHeader string) error {
	if !VerifySignature(c.ipnSecret, rawBody, hmacHeader) {
		return apperr.Unauthorized("invalid ipn signature")
	}
	return nil
}

// MapStatus converts a gateway status code to the internal transaction
// status. Gateway codes: 100 complete, -1 cancelled/timed out, -2 refund or
// reversal, 0..3 intermediate confirmations. Unknown codes stay pending.
func MapStatus(code int) types.TransactionStatus {
	switch {
	case code == 100:
		return types.TransactionStatusCompleted
	case code == -1 || code == -2:
		return types.TransactionStatusFailed
	default:
		return types.TransactionStatusPending
	}
}

// ParseIPN decodes a form-encoded notification body.
func ParseIPN(raw []byte) (IPN, error) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return IPN{}, apperr.Validation("malformed notification body")
	}
	txnID := strings.TrimSpace(values.Get("txn_id"))
	if txnID == "" {
		return IPN{}, apperr.Validation("txn_id is required")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(values.Get("amount")))
	if err != nil || !amount.GreaterThan(decimal.Zero) {
		return IPN{}, apperr.Validation("invalid amount")
	}
	status, err := strconv.Atoi(strings.TrimSpace(values.Get("status")))
	if err != nil {
		return IPN{}, apperr.Validation("invalid status")
	}
	return IPN{
		TxnID:    txnID,
		Amount:   amount,
		Status:   status,
		Address:  strings.TrimSpace(values.Get("address")),
		Currency: strings.TrimSpace(values.Get("currency")),
	}, nil
}

type apiEnvelope struct {
	Error  string          `json:"error"`
	Result json.RawMessage `json:"result"`
}

type callbackAddressResult struct {
	Address string `json:"address"`
}

// CallbackAddress requests a fresh deposit address bound to the user's IPN
// callback URL.
func (c *Client) CallbackAddress(ctx context.Context, userID string) (string, error) {
	if c.apiURL == "" || c.apiKey == "" {
		return "", apperr.New(apperr.CodeStore, "payment gateway is not configured")
	}
	params := url.Values{}
	params.Set("cmd", "get_callback_address")
	params.Set("key", c.apiKey)
	params.Set("version", "1")
	params.Set("currency", c.currency)
	if c.ipnBaseURL != "" {
		params.Set("ipn_url", c.ipnBaseURL+"/v1/webhooks/crypto-payment?userId="+url.QueryEscape(userID))
	}
	result, err := c.call(ctx, params)
	if err != nil {
		return "", err
	}
	var out callbackAddressResult
	if err := json.Unmarshal(result, &out); err != nil {
		return "", apperr.Wrap(apperr.CodeStore, "malformed gateway response", err)
	}
	if out.Address == "" {
		return "", apperr.New(apperr.CodeStore, "gateway returned empty address")
	}
	return out.Address, nil
}

func (c *Client) call(ctx context.Context, params url.Values) (json.RawMessage, error) {
	payload := params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(payload))
	if err != nil {
		return nil, apperr.Store(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HMAC", Sign(c.apiSecret, []byte(payload)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStore, "gateway request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Store(err)
	}
	var envelope apiEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, apperr.Wrap(apperr.CodeStore, "malformed gateway response", err)
	}
	if envelope.Error != "ok" {
		return nil, apperr.Wrap(apperr.CodeStore, "gateway error", errors.New(envelope.Error))
	}
	return envelope.Result, nil
}
