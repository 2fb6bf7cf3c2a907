// Package gateway is the HTTP client for the bank-transfer payment gateway: bank
// lookup, account validation, disbursements, checkout links and reserved accounts.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "ledgerpay/internal/errors"
	"ledgerpay/internal/repositories/cache"
)

const (
	defaultTimeout = 30 * time.Second
	tokenSkew      = 60 * time.Second
	banksTTL       = 6 * time.Hour
	currency       = "NGN"
)

var banksKey = cache.Key("gateway", "banks", "all")

type Options struct {
	BaseURL       string
	APIKey        string
	SecretKey     string
	ContractCode  string
	SourceAccount string
	RedirectURL   string
	Timeout       time.Duration
	Tokens        TokenCache
	// Banks caches the bank list; nil disables caching.
	Banks      cache.Cache
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the gateway API. It is safe for concurrent use.
type Client struct {
	baseURL       string
	apiKey        string
	secretKey     string
	contractCode  string
	sourceAccount string
	redirectURL   string
	tokens        TokenCache
	banks         cache.Cache
	http          *http.Client
	logger        *slog.Logger
	now           func() time.Time

	loginMu sync.Mutex
}

func NewClient(opts Options) *Client {
	if opts.Tokens == nil {
		opts.Tokens = NewMemoryTokenCache()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HTTPClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		opts.HTTPClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		apiKey:        opts.APIKey,
		secretKey:     opts.SecretKey,
		contractCode:  opts.ContractCode,
		sourceAccount: opts.SourceAccount,
		redirectURL:   opts.RedirectURL,
		tokens:        opts.Tokens,
		banks:         opts.Banks,
		http:          opts.HTTPClient,
		logger:        opts.Logger,
		now:           time.Now,
	}
}

// SecretKey is the key webhook signatures are computed with.
func (c *Client) SecretKey() string {
	return c.secretKey
}

// ListBanks returns the banks transfers can be sent to.
func (c *Client) ListBanks(ctx context.Context) ([]Bank, error) {
	var banks []Bank
	if c.banks != nil {
		if found, err := c.banks.Get(ctx, banksKey, &banks); err == nil && found {
			return banks, nil
		}
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/banks", nil, &banks); err != nil {
		return nil, err
	}
	if c.banks != nil {
		if err := c.banks.SetWithTTL(ctx, banksKey, banks, banksTTL); err != nil {
			c.logger.Warn("failed to cache bank list", "error", err)
		}
	}
	return banks, nil
}

// FindBank resolves a bank by name, ignoring case and surrounding space.
func (c *Client) FindBank(ctx context.Context, name string) (Bank, error) {
	banks, err := c.ListBanks(ctx)
	if err != nil {
		return Bank{}, err
	}
	want := strings.TrimSpace(name)
	for _, b := range banks {
		if strings.EqualFold(strings.TrimSpace(b.Name), want) {
			return b, nil
		}
	}
	return Bank{}, apperrors.ErrBankNotFound
}

func (c *Client) ValidateAccount(ctx context.Context, accountNumber, bankCode string) (*AccountDetails, error) {
	q := url.Values{}
	q.Set("accountNumber", accountNumber)
	q.Set("bankCode", bankCode)
	var out AccountDetails
	if err := c.do(ctx, http.MethodGet, "/api/v1/disbursements/account/validate?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InitiateTransfer starts a single disbursement from the configured source account.
func (c *Client) InitiateTransfer(ctx context.Context, req TransferRequest) (*TransferResponse, error) {
	if req.Currency == "" {
		req.Currency = currency
	}
	if req.SourceAccountNumber == "" {
		req.SourceAccountNumber = c.sourceAccount
	}
	var out TransferResponse
	if err := c.do(ctx, http.MethodPost, "/api/v2/disbursements/single", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AuthorizeTransfer submits the OTP for a disbursement awaiting authorization.
func (c *Client) AuthorizeTransfer(ctx context.Context, reference, otp string) (*TransferResponse, error) {
	body := map[string]string{"reference": reference, "authorizationCode": otp}
	var out TransferResponse
	if err := c.do(ctx, http.MethodPost, "/api/v2/disbursements/single/validate-otp", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TransferStatus(ctx context.Context, reference string) (*TransferResponse, error) {
	var out TransferResponse
	path := "/api/v2/disbursements/single/summary?reference=" + url.QueryEscape(reference)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InitPayment creates a checkout session the customer pays into.
func (c *Client) InitPayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	if req.CurrencyCode == "" {
		req.CurrencyCode = currency
	}
	if req.ContractCode == "" {
		req.ContractCode = c.contractCode
	}
	if req.RedirectURL == "" {
		req.RedirectURL = c.redirectURL
	}
	if len(req.PaymentMethods) == 0 {
		req.PaymentMethods = []string{"CARD", "ACCOUNT_TRANSFER"}
	}
	var out PaymentResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/merchant/transactions/init-transaction", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateReservedAccount(ctx context.Context, req ReservedAccountRequest) (*ReservedAccountResponse, error) {
	if req.CurrencyCode == "" {
		req.CurrencyCode = currency
	}
	if req.ContractCode == "" {
		req.ContractCode = c.contractCode
	}
	var out ReservedAccountResponse
	if err := c.do(ctx, http.MethodPost, "/api/v2/bank-transfer/reserved-accounts", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// token returns a cached bearer token or logs in for a new one. A cached token equal
// to rejected is never returned.
func (c *Client) token(ctx context.Context, rejected string) (string, error) {
	usable := func(t Token, ok bool) bool {
		return ok && t.Valid(c.now(), tokenSkew) && t.Value != rejected
	}
	if t, ok := c.tokens.Get(ctx); usable(t, ok) {
		return t.Value, nil
	}

	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	// Another caller may have refreshed it while we waited.
	if t, ok := c.tokens.Get(ctx); usable(t, ok) {
		return t.Value, nil
	}

	basic := base64.StdEncoding.EncodeToString([]byte(c.apiKey + ":" + c.secretKey))
	var body loginBody
	if err := c.send(ctx, http.MethodPost, "/api/v1/auth/login", "Basic "+basic, nil, &body); err != nil {
		return "", fmt.Errorf("gateway login failed: %w", err)
	}
	if body.AccessToken == "" {
		return "", &GatewayError{StatusCode: http.StatusBadGateway, Message: "login returned no access token"}
	}
	t := Token{Value: body.AccessToken, ExpiresAt: c.now().Add(time.Duration(body.ExpiresIn) * time.Second)}
	c.tokens.Set(ctx, t)
	return t.Value, nil
}

// do performs an authenticated call, refreshing the token once on 401.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	rejected := ""
	for attempt := 0; ; attempt++ {
		tok, err := c.token(ctx, rejected)
		if err != nil {
			return err
		}
		err = c.send(ctx, method, path, "Bearer "+tok, payload, out)
		var ge *GatewayError
		if attempt == 0 && errors.As(err, &ge) && ge.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate(ctx)
			rejected = tok
			continue
		}
		return err
	}
}

func (c *Client) send(ctx context.Context, method, path, authorization string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", authorization)

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("gateway request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("gateway request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}
	c.logger.Debug("gateway response", "method", method, "path", path,
		"status", resp.StatusCode, "duration", c.now().Sub(start))

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= 300 || decodeErr != nil || !env.RequestSuccessful {
		return newGatewayError(resp.StatusCode, raw, env)
	}
	if out == nil || len(env.ResponseBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.ResponseBody, out); err != nil {
		return fmt.Errorf("failed to decode gateway response body: %w", err)
	}
	return nil
}

func newGatewayError(status int, raw []byte, env envelope) *GatewayError {
	ge := &GatewayError{StatusCode: status, Message: env.ResponseMessage}
	var body map[string]interface{}
	if json.Unmarshal(raw, &body) == nil {
		ge.Body = body
	}
	if ge.Message == "" {
		ge.Message = http.StatusText(status)
	}
	// A 2xx envelope with requestSuccessful=false is a refusal of the request itself.
	if status < 300 {
		ge.StatusCode = http.StatusUnprocessableEntity
	}
	return ge
}
