package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"nyota-loan-api/internal/domain"
	"nyota-loan-api/internal/domain/model"
	"nyota-loan-api/internal/domain/ports/repository"
)

var _ repository.ApplicationRepository = (*ApplicationRepo)(nil)

// ApplicationRepo is the default in-process registry. One RWMutex covers both
// the record map and the checkout index, which gives every read-modify-write
// on a record a total order. State lives for the process lifetime only.
type ApplicationRepo struct {
	mu         sync.RWMutex
	apps       map[string]*model.Application // keyed by ApplicationID
	byCheckout map[string]string             // CheckoutRequestID -> ApplicationID
}

func NewApplicationRepo() *ApplicationRepo {
	return &ApplicationRepo{
		apps:       make(map[string]*model.Application),
		byCheckout: make(map[string]string),
	}
}

func (r *ApplicationRepo) Create(_ context.Context, app *model.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *app
	r.apps[cp.ApplicationID] = &cp
	if cp.CheckoutRequestID != "" {
		r.byCheckout[cp.CheckoutRequestID] = cp.ApplicationID
	}
	return nil
}

func (r *ApplicationRepo) FindByID(_ context.Context, id string) (*model.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app := r.resolve(id)
	if app == nil {
		return nil, domain.ErrNotFound
	}
	cp := *app
	return &cp, nil
}

// resolve looks up by application id first, then through the checkout index.
// Callers must hold at least the read lock.
func (r *ApplicationRepo) resolve(id string) *model.Application {
	if app, ok := r.apps[id]; ok {
		return app
	}
	if appID, ok := r.byCheckout[id]; ok {
		return r.apps[appID]
	}
	return nil
}

func (r *ApplicationRepo) AttachCheckout(_ context.Context, applicationID, checkoutID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[applicationID]
	if !ok {
		return domain.ErrNotFound
	}
	app.CheckoutRequestID = checkoutID
	r.byCheckout[checkoutID] = applicationID
	return nil
}

func (r *ApplicationRepo) UpsertByCheckoutID(_ context.Context, checkoutID string, app *model.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if appID, ok := r.byCheckout[checkoutID]; ok {
		existing := r.apps[appID]
		existing.PhoneNumber = app.PhoneNumber
		existing.LoanAmount = app.LoanAmount
		existing.Status = app.Status
		return nil
	}
	cp := *app
	cp.CheckoutRequestID = checkoutID
	r.apps[cp.ApplicationID] = &cp
	r.byCheckout[checkoutID] = cp.ApplicationID
	return nil
}

func (r *ApplicationRepo) Complete(_ context.Context, checkoutID, receipt string, callback json.RawMessage, at time.Time) (*model.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app := r.resolve(checkoutID)
	if app == nil {
		return nil, domain.ErrNotFound
	}
	// Idempotent by checkout id: a redelivered success callback is a no-op.
	if app.Status != model.ApplicationStatusCompleted {
		app.Status = model.ApplicationStatusCompleted
		app.CompletedAt = &at
		app.MpesaReceipt = receipt
		app.GatewayCallback = callback
		app.FailureReason = ""
	}
	cp := *app
	return &cp, nil
}

func (r *ApplicationRepo) Fail(_ context.Context, checkoutID, reason string) (*model.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app := r.resolve(checkoutID)
	if app == nil {
		return nil, domain.ErrNotFound
	}
	// A completed record is terminal; a late failure callback cannot demote it.
	if app.Status != model.ApplicationStatusCompleted {
		app.Status = model.ApplicationStatusFailed
		app.FailureReason = reason
	}
	cp := *app
	return &cp, nil
}
