//go:build !integration

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"nyota-loan-api/internal/config"
	"nyota-loan-api/internal/domain"
	"nyota-loan-api/internal/domain/ports/adapter"
	"nyota-loan-api/internal/infra/memory"
	red "nyota-loan-api/internal/infra/redis"
	"nyota-loan-api/internal/usecase"
)

// --- Mock payment gateway (port) ---

type mockGateway struct {
	Ack     *adapter.STKPushAck
	PushErr error
}

func (m *mockGateway) Name() string { return "mock" }

func (m *mockGateway) AccessToken(context.Context) (string, error) { return "tok", nil }

func (m *mockGateway) STKPush(_ context.Context, req adapter.STKPushRequest) (*adapter.STKPushAck, error) {
	if m.PushErr != nil {
		return nil, m.PushErr
	}
	if m.Ack != nil {
		return m.Ack, nil
	}
	return &adapter.STKPushAck{
		MerchantRequestID: "29115-34620561-1",
		CheckoutRequestID: "ws_CO_test",
		ResponseCode:      "0",
	}, nil
}

// --- Fake redis client backing the rate limiter ---

type fakeRedis struct {
	counts map[string]int64
}

func newFakeRedis() *fakeRedis { return &fakeRedis{counts: make(map[string]int64)} }

func (f *fakeRedis) Ping(context.Context) error { return nil }

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	return nil
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) { return "", red.Nil }

func (f *fakeRedis) Incr(_ context.Context, key string) (int64, error) {
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRedis) Expire(context.Context, string, time.Duration) error { return nil }

func (f *fakeRedis) Del(context.Context, ...string) error { return nil }

func (f *fakeRedis) Close() error { return nil }

// --- Test helpers ---

func newTestServer(gw adapter.PaymentGateway, limiter *red.RateLimiter) http.Handler {
	logger := zerolog.Nop()
	repo := memory.NewApplicationRepo()
	appUC := usecase.NewApplicationUseCase(repo, &logger)
	payUC := usecase.NewPaymentUseCase(repo, gw, &logger)
	rl := config.RateLimitConfig{Enabled: limiter != nil, Limit: 2, Window: time.Minute}
	return NewServer(appUC, payUC, limiter, rl, &logger).Routes()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

// --- Tests ---

func TestHealth(t *testing.T) {
	h := newTestServer(&mockGateway{}, nil)

	rr := doJSON(t, h, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decode(t, rr)
	if body["status"] != "healthy" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["service"] != "Nyota Youth Empowerment API" {
		t.Errorf("service field = %v", body["service"])
	}
	if body["timestamp"] == nil {
		t.Errorf("timestamp missing")
	}

	if rr := doJSON(t, h, http.MethodPost, "/health", nil); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health status = %d, want 405", rr.Code)
	}
}

func TestCORS(t *testing.T) {
	h := newTestServer(&mockGateway{}, nil)

	t.Run("preflight returns 200 with no body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/loan-options", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("status = %d", rr.Code)
		}
		if rr.Body.Len() != 0 {
			t.Errorf("preflight body = %q, want empty", rr.Body.String())
		}
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("allow-origin = %q", got)
		}
		if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET,POST,OPTIONS" {
			t.Errorf("allow-methods = %q", got)
		}
	})

	t.Run("regular responses carry the open origin header", func(t *testing.T) {
		rr := doJSON(t, h, http.MethodGet, "/health", nil)
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("allow-origin = %q", got)
		}
	})
}

func TestLoanOptions(t *testing.T) {
	h := newTestServer(&mockGateway{}, nil)

	first := doJSON(t, h, http.MethodGet, "/api/loan-options", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d", first.Code)
	}
	body := decode(t, first)
	if body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	data := body["data"].([]interface{})
	if len(data) != 14 {
		t.Fatalf("expected 14 options, got %d", len(data))
	}
	for _, raw := range data {
		entry := raw.(map[string]interface{})
		if entry["apr"] != "60%" {
			t.Errorf("apr = %v", entry["apr"])
		}
		if entry["repaymentPeriod"] != "2 months" {
			t.Errorf("repaymentPeriod = %v", entry["repaymentPeriod"])
		}
		amount := entry["amount"].(float64)
		fee := entry["fee"].(float64)
		interest := entry["interest"].(float64)
		if entry["totalRepayment"].(float64) != amount+fee+interest {
			t.Errorf("totalRepayment mismatch for amount %v", amount)
		}
	}
	if body["terms"] == nil {
		t.Errorf("terms missing")
	}

	// Idempotent across calls.
	second := doJSON(t, h, http.MethodGet, "/api/loan-options", nil)
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Errorf("loan options changed between calls")
	}

	if rr := doJSON(t, h, http.MethodPost, "/api/loan-options", nil); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rr.Code)
	}
}

func TestSubmitApplication(t *testing.T) {
	h := newTestServer(&mockGateway{}, nil)

	t.Run("success with defaulted id number", func(t *testing.T) {
		rr := doJSON(t, h, http.MethodPost, "/api/submit-application", map[string]interface{}{
			"fullName":    "Jane Doe",
			"phoneNumber": "0712345678",
			"loanAmount":  5500,
			"fee":         100,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
		}
		body := decode(t, rr)
		if body["success"] != true {
			t.Errorf("success = %v", body["success"])
		}
		appID, _ := body["applicationId"].(string)
		if !strings.HasPrefix(appID, "NYOTA-") {
			t.Errorf("applicationId = %q", appID)
		}
		data := body["data"].(map[string]interface{})
		if data["idNumber"] != "N/A" {
			t.Errorf("idNumber = %v, want sentinel N/A", data["idNumber"])
		}
		if data["status"] != "pending" {
			t.Errorf("status = %v", data["status"])
		}
		if data["interest"].(float64) != 550 {
			t.Errorf("interest = %v", data["interest"])
		}
		if data["totalRepayment"].(float64) != 6150 {
			t.Errorf("totalRepayment = %v", data["totalRepayment"])
		}

		// The record is immediately pollable.
		get := doJSON(t, h, http.MethodGet, "/api/application/"+appID, nil)
		if get.Code != http.StatusOK {
			t.Errorf("GET application status = %d", get.Code)
		}
	})

	t.Run("missing phone number is a 400", func(t *testing.T) {
		rr := doJSON(t, h, http.MethodPost, "/api/submit-application", map[string]interface{}{
			"fullName": "Jane Doe",
		})
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rr.Code)
		}
		if body := decode(t, rr); body["success"] != false {
			t.Errorf("success = %v", body["success"])
		}
	})

	t.Run("garbage body is a 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/submit-application", strings.NewReader("{not json"))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rr.Code)
		}
	})
}

func TestInitiatePayment(t *testing.T) {
	t.Run("success returns the gateway ack", func(t *testing.T) {
		h := newTestServer(&mockGateway{}, nil)
		rr := doJSON(t, h, http.MethodPost, "/api/initiate-payment", map[string]interface{}{
			"phoneNumber": "0712345678",
			"amount":      100,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
		}
		body := decode(t, rr)
		if body["success"] != true {
			t.Errorf("success = %v", body["success"])
		}
		data := body["data"].(map[string]interface{})
		if data["CheckoutRequestID"] != "ws_CO_test" {
			t.Errorf("CheckoutRequestID = %v", data["CheckoutRequestID"])
		}
	})

	t.Run("missing fields are a 400", func(t *testing.T) {
		h := newTestServer(&mockGateway{}, nil)
		rr := doJSON(t, h, http.MethodPost, "/api/initiate-payment", map[string]interface{}{
			"amount": 100,
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rr.Code)
		}
	})

	t.Run("gateway failure forwards the payload", func(t *testing.T) {
		gw := &mockGateway{PushErr: &domain.GatewayError{StatusCode: 500, Body: `{"errorCode":"500.001.1001"}`}}
		h := newTestServer(gw, nil)
		rr := doJSON(t, h, http.MethodPost, "/api/initiate-payment", map[string]interface{}{
			"phoneNumber": "0712345678",
			"amount":      100,
		})
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", rr.Code)
		}
		body := decode(t, rr)
		if body["success"] != false {
			t.Errorf("success = %v", body["success"])
		}
		detail := body["error"].(map[string]interface{})
		if detail["errorCode"] != "500.001.1001" {
			t.Errorf("gateway payload not forwarded: %v", body["error"])
		}
	})

	t.Run("auth failure forwards the payload", func(t *testing.T) {
		gw := &mockGateway{PushErr: &domain.AuthError{StatusCode: 401, Body: `{"errorCode":"400.008.01"}`}}
		h := newTestServer(gw, nil)
		rr := doJSON(t, h, http.MethodPost, "/api/initiate-payment", map[string]interface{}{
			"phoneNumber": "0712345678",
			"amount":      100,
		})
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", rr.Code)
		}
		body := decode(t, rr)
		detail := body["error"].(map[string]interface{})
		if detail["errorCode"] != "400.008.01" {
			t.Errorf("auth payload not forwarded: %v", body["error"])
		}
	})

	t.Run("rate limiter throttles repeated pushes for one phone", func(t *testing.T) {
		limiter := red.NewRateLimiter(newFakeRedis())
		h := newTestServer(&mockGateway{}, limiter)

		payload := map[string]interface{}{"phoneNumber": "0712345678", "amount": 100}
		for i := 0; i < 2; i++ {
			if rr := doJSON(t, h, http.MethodPost, "/api/initiate-payment", payload); rr.Code != http.StatusOK {
				t.Fatalf("request %d status = %d", i, rr.Code)
			}
		}
		rr := doJSON(t, h, http.MethodPost, "/api/initiate-payment", payload)
		if rr.Code != http.StatusTooManyRequests {
			t.Errorf("status = %d, want 429", rr.Code)
		}

		// A different phone number is unaffected.
		other := map[string]interface{}{"phoneNumber": "0798765432", "amount": 100}
		if rr := doJSON(t, h, http.MethodPost, "/api/initiate-payment", other); rr.Code != http.StatusOK {
			t.Errorf("other phone status = %d", rr.Code)
		}
	})
}

func TestCallback(t *testing.T) {
	successCallback := func(checkoutID string) map[string]interface{} {
		return map[string]interface{}{
			"Body": map[string]interface{}{
				"stkCallback": map[string]interface{}{
					"MerchantRequestID": "29115-34620561-1",
					"CheckoutRequestID": checkoutID,
					"ResultCode":        0,
					"ResultDesc":        "The service request is processed successfully.",
					"CallbackMetadata": map[string]interface{}{
						"Item": []map[string]interface{}{
							{"Name": "Amount", "Value": 100},
							{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
						},
					},
				},
			},
		}
	}

	assertAck := func(t *testing.T, rr *httptest.ResponseRecorder) {
		t.Helper()
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d", rr.Code)
		}
		body := decode(t, rr)
		if body["ResultCode"].(float64) != 0 || body["ResultDesc"] != "Success" {
			t.Errorf("ack envelope = %v", body)
		}
	}

	t.Run("success callback completes the pending record", func(t *testing.T) {
		h := newTestServer(&mockGateway{}, nil)

		init := doJSON(t, h, http.MethodPost, "/api/initiate-payment", map[string]interface{}{
			"phoneNumber": "0712345678",
			"amount":      100,
		})
		if init.Code != http.StatusOK {
			t.Fatalf("initiate status = %d", init.Code)
		}

		assertAck(t, doJSON(t, h, http.MethodPost, "/api/mpesa-callback", successCallback("ws_CO_test")))

		get := doJSON(t, h, http.MethodGet, "/api/application/ws_CO_test", nil)
		if get.Code != http.StatusOK {
			t.Fatalf("GET by checkout id status = %d", get.Code)
		}
		data := decode(t, get)["data"].(map[string]interface{})
		if data["status"] != "completed" {
			t.Errorf("status = %v, want completed", data["status"])
		}
		if data["completedAt"] == nil {
			t.Errorf("completedAt not set")
		}
		if data["mpesaReceipt"] != "NLJ7RT61SV" {
			t.Errorf("mpesaReceipt = %v", data["mpesaReceipt"])
		}
	})

	t.Run("unknown checkout id still acks", func(t *testing.T) {
		h := newTestServer(&mockGateway{}, nil)
		assertAck(t, doJSON(t, h, http.MethodPost, "/api/mpesa-callback", successCallback("ws_CO_unknown")))
	})

	t.Run("empty envelope still acks", func(t *testing.T) {
		h := newTestServer(&mockGateway{}, nil)
		assertAck(t, doJSON(t, h, http.MethodPost, "/api/mpesa-callback", map[string]interface{}{}))
	})

	t.Run("garbage body still acks", func(t *testing.T) {
		h := newTestServer(&mockGateway{}, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/mpesa-callback", strings.NewReader("{not json"))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assertAck(t, rr)
	})

	t.Run("failure callback marks the record failed", func(t *testing.T) {
		h := newTestServer(&mockGateway{}, nil)

		if rr := doJSON(t, h, http.MethodPost, "/api/initiate-payment", map[string]interface{}{
			"phoneNumber": "0712345678",
			"amount":      100,
		}); rr.Code != http.StatusOK {
			t.Fatalf("initiate status = %d", rr.Code)
		}

		assertAck(t, doJSON(t, h, http.MethodPost, "/api/mpesa-callback", map[string]interface{}{
			"Body": map[string]interface{}{
				"stkCallback": map[string]interface{}{
					"CheckoutRequestID": "ws_CO_test",
					"ResultCode":        1032,
					"ResultDesc":        "Request cancelled by user",
				},
			},
		}))

		data := decode(t, doJSON(t, h, http.MethodGet, "/api/application/ws_CO_test", nil))["data"].(map[string]interface{})
		if data["status"] != "failed" {
			t.Errorf("status = %v, want failed", data["status"])
		}
		if data["failureReason"] != "Request cancelled by user" {
			t.Errorf("failureReason = %v", data["failureReason"])
		}
	})
}

func TestGetApplication(t *testing.T) {
	h := newTestServer(&mockGateway{}, nil)

	rr := doJSON(t, h, http.MethodGet, "/api/application/NYOTA-unknown", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	body := decode(t, rr)
	if body["success"] != false {
		t.Errorf("success = %v, want false", body["success"])
	}
	if body["message"] != "Application not found" {
		t.Errorf("message = %v", body["message"])
	}
}
