//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nyota-loan-api/internal/domain"
	"nyota-loan-api/internal/domain/model"
	"nyota-loan-api/internal/domain/ports/adapter"
	"nyota-loan-api/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// --- Mock registry (port) ---

type mockApplicationRepo struct {
	mu         sync.Mutex
	apps       map[string]*model.Application
	byCheckout map[string]string

	CreateCalls int
	CreateError error
	UpsertError error
}

var _ repository.ApplicationRepository = (*mockApplicationRepo)(nil)

func newMockApplicationRepo() *mockApplicationRepo {
	return &mockApplicationRepo{
		apps:       make(map[string]*model.Application),
		byCheckout: make(map[string]string),
	}
}

func (m *mockApplicationRepo) resolve(id string) *model.Application {
	if app, ok := m.apps[id]; ok {
		return app
	}
	if appID, ok := m.byCheckout[id]; ok {
		return m.apps[appID]
	}
	return nil
}

func (m *mockApplicationRepo) Create(_ context.Context, app *model.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateError != nil {
		return m.CreateError
	}
	cp := *app
	m.apps[cp.ApplicationID] = &cp
	return nil
}

func (m *mockApplicationRepo) FindByID(_ context.Context, id string) (*model.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app := m.resolve(id)
	if app == nil {
		return nil, domain.ErrNotFound
	}
	cp := *app
	return &cp, nil
}

func (m *mockApplicationRepo) AttachCheckout(_ context.Context, applicationID, checkoutID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.apps[applicationID]
	if !ok {
		return domain.ErrNotFound
	}
	app.CheckoutRequestID = checkoutID
	m.byCheckout[checkoutID] = applicationID
	return nil
}

func (m *mockApplicationRepo) UpsertByCheckoutID(_ context.Context, checkoutID string, app *model.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertError != nil {
		return m.UpsertError
	}
	cp := *app
	cp.CheckoutRequestID = checkoutID
	m.apps[cp.ApplicationID] = &cp
	m.byCheckout[checkoutID] = cp.ApplicationID
	return nil
}

func (m *mockApplicationRepo) Complete(_ context.Context, checkoutID, receipt string, callback json.RawMessage, at time.Time) (*model.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app := m.resolve(checkoutID)
	if app == nil {
		return nil, domain.ErrNotFound
	}
	app.Status = model.ApplicationStatusCompleted
	app.CompletedAt = &at
	app.MpesaReceipt = receipt
	app.GatewayCallback = callback
	cp := *app
	return &cp, nil
}

func (m *mockApplicationRepo) Fail(_ context.Context, checkoutID, reason string) (*model.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app := m.resolve(checkoutID)
	if app == nil {
		return nil, domain.ErrNotFound
	}
	app.Status = model.ApplicationStatusFailed
	app.FailureReason = reason
	cp := *app
	return &cp, nil
}

func (m *mockApplicationRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.apps)
}

// --- Mock payment gateway (port) ---

type mockPaymentGateway struct {
	mu       sync.Mutex
	Ack      *adapter.STKPushAck
	PushErr  error
	TokenErr error
	Requests []adapter.STKPushRequest
}

var _ adapter.PaymentGateway = (*mockPaymentGateway)(nil)

func (m *mockPaymentGateway) Name() string { return "mock" }

func (m *mockPaymentGateway) AccessToken(context.Context) (string, error) {
	if m.TokenErr != nil {
		return "", m.TokenErr
	}
	return "tok-test", nil
}

func (m *mockPaymentGateway) STKPush(_ context.Context, req adapter.STKPushRequest) (*adapter.STKPushAck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.PushErr != nil {
		return nil, m.PushErr
	}
	if m.Ack != nil {
		return m.Ack, nil
	}
	return &adapter.STKPushAck{
		MerchantRequestID:   "29115-34620561-1",
		CheckoutRequestID:   "ws_CO_test",
		ResponseCode:        "0",
		ResponseDescription: "Success. Request accepted for processing",
	}, nil
}
