package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"nyota-loan-api/internal/config"
	"nyota-loan-api/internal/domain"
	"nyota-loan-api/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*DarajaGateway)(nil)

const (
	tokenPath   = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath = "/mpesa/stkpush/v1/processrequest"

	defaultAccountReference = "NYOTA Loan"
	defaultTransactionDesc  = "Loan Application Fee"
)

// DarajaGateway implements adapter.PaymentGateway against Safaricom's Daraja
// API: basic-auth token endpoint plus the STK push process request. The base
// URL points at the sandbox unless overridden.
type DarajaGateway struct {
	consumerKey    string
	consumerSecret string
	shortCode      string
	passkey        string
	callbackURL    string
	baseURL        string
	client         *http.Client
	now            func() time.Time
}

func NewDarajaGateway(cfg config.MpesaConfig) (*DarajaGateway, error) {
	switch {
	case cfg.ConsumerKey == "" || cfg.ConsumerSecret == "":
		return nil, fmt.Errorf("%w: mpesa consumer key/secret", domain.ErrMissingConfig)
	case cfg.ShortCode == "" || cfg.Passkey == "" || cfg.CallbackURL == "":
		return nil, fmt.Errorf("%w: mpesa short code, passkey or callback url", domain.ErrMissingConfig)
	}
	return &DarajaGateway{
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		shortCode:      cfg.ShortCode,
		passkey:        cfg.Passkey,
		callbackURL:    cfg.CallbackURL,
		baseURL:        cfg.BaseURL,
		client:         &http.Client{Timeout: 15 * time.Second},
		now:            time.Now,
	}, nil
}

func (g *DarajaGateway) Name() string { return "daraja" }

// AccessToken fetches a short-lived bearer token via HTTP basic auth.
func (g *DarajaGateway) AccessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+tokenPath, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.consumerKey, g.consumerSecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", &domain.AuthError{Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &domain.AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   string `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &domain.AuthError{StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}
	if out.AccessToken == "" {
		return "", &domain.AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return out.AccessToken, nil
}

// stkPushPayload uses Daraja's exact field names.
type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPush authenticates and submits the push request. The acknowledgment's
// CheckoutRequestID correlates the later callback.
func (g *DarajaGateway) STKPush(ctx context.Context, req adapter.STKPushRequest) (*adapter.STKPushAck, error) {
	if req.PhoneNumber == "" || req.Amount <= 0 {
		return nil, fmt.Errorf("%w: phoneNumber and amount are required", domain.ErrInvalidArgument)
	}

	token, err := g.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	ts := g.now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(g.shortCode + g.passkey + ts))
	phone := adapter.NormalizeMSISDN(req.PhoneNumber)

	accountRef := req.AccountReference
	if accountRef == "" {
		accountRef = defaultAccountReference
	}
	desc := req.TransactionDesc
	if desc == "" {
		desc = defaultTransactionDesc
	}

	payload := stkPushPayload{
		BusinessShortCode: g.shortCode,
		Password:          password,
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            req.Amount,
		PartyA:            phone,
		PartyB:            g.shortCode,
		PhoneNumber:       phone,
		CallBackURL:       g.callbackURL,
		AccountReference:  accountRef,
		TransactionDesc:   desc,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+stkPushPath, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, &domain.GatewayError{Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.GatewayError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var ack adapter.STKPushAck
	if err := json.Unmarshal(body, &ack); err != nil {
		return nil, &domain.GatewayError{StatusCode: resp.StatusCode, Body: string(body), Err: err}
	}
	return &ack, nil
}
