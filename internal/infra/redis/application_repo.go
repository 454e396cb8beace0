package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"nyota-loan-api/internal/domain"
	"nyota-loan-api/internal/domain/model"
	"nyota-loan-api/internal/domain/ports/repository"
)

var _ repository.ApplicationRepository = (*ApplicationRepo)(nil)

// ApplicationRepo is an opt-in registry backend that keeps correlations across
// process restarts. Records are JSON values under app:<id>; the checkout index
// is a plain string key checkout:<id> -> application id.
//
// Read-modify-write is serialized through an in-process mutex, which matches
// the single-instance deployment model (multi-instance consistency is out of
// scope).
type ApplicationRepo struct {
	mu     sync.Mutex
	client RedisClient
}

func NewApplicationRepo(client RedisClient) *ApplicationRepo {
	return &ApplicationRepo{client: client}
}

func appKey(id string) string      { return "app:" + id }
func checkoutKey(id string) string { return "checkout:" + id }

func (r *ApplicationRepo) save(ctx context.Context, app *model.Application) error {
	b, err := json.Marshal(app)
	if err != nil {
		return fmt.Errorf("marshal application: %w", err)
	}
	// No expiry: the registry has no eviction policy.
	return r.client.Set(ctx, appKey(app.ApplicationID), string(b), 0)
}

func (r *ApplicationRepo) load(ctx context.Context, applicationID string) (*model.Application, error) {
	raw, err := r.client.Get(ctx, appKey(applicationID))
	if errors.Is(err, Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var app model.Application
	if err := json.Unmarshal([]byte(raw), &app); err != nil {
		return nil, fmt.Errorf("unmarshal application: %w", err)
	}
	return &app, nil
}

// resolve accepts either identifier, like the memory backend.
func (r *ApplicationRepo) resolve(ctx context.Context, id string) (*model.Application, error) {
	app, err := r.load(ctx, id)
	if err == nil {
		return app, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	appID, err := r.client.Get(ctx, checkoutKey(id))
	if errors.Is(err, Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.load(ctx, appID)
}

func (r *ApplicationRepo) Create(ctx context.Context, app *model.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.save(ctx, app); err != nil {
		return err
	}
	if app.CheckoutRequestID != "" {
		return r.client.Set(ctx, checkoutKey(app.CheckoutRequestID), app.ApplicationID, 0)
	}
	return nil
}

func (r *ApplicationRepo) FindByID(ctx context.Context, id string) (*model.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolve(ctx, id)
}

func (r *ApplicationRepo) AttachCheckout(ctx context.Context, applicationID, checkoutID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, err := r.load(ctx, applicationID)
	if err != nil {
		return err
	}
	app.CheckoutRequestID = checkoutID
	if err := r.save(ctx, app); err != nil {
		return err
	}
	return r.client.Set(ctx, checkoutKey(checkoutID), applicationID, 0)
}

func (r *ApplicationRepo) UpsertByCheckoutID(ctx context.Context, checkoutID string, app *model.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, err := r.resolve(ctx, checkoutID)
	if errors.Is(err, domain.ErrNotFound) {
		cp := *app
		cp.CheckoutRequestID = checkoutID
		if err := r.save(ctx, &cp); err != nil {
			return err
		}
		return r.client.Set(ctx, checkoutKey(checkoutID), cp.ApplicationID, 0)
	}
	if err != nil {
		return err
	}
	existing.PhoneNumber = app.PhoneNumber
	existing.LoanAmount = app.LoanAmount
	existing.Status = app.Status
	return r.save(ctx, existing)
}

func (r *ApplicationRepo) Complete(ctx context.Context, checkoutID, receipt string, callback json.RawMessage, at time.Time) (*model.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, err := r.resolve(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if app.Status != model.ApplicationStatusCompleted {
		app.Status = model.ApplicationStatusCompleted
		app.CompletedAt = &at
		app.MpesaReceipt = receipt
		app.GatewayCallback = callback
		app.FailureReason = ""
		if err := r.save(ctx, app); err != nil {
			return nil, err
		}
	}
	return app, nil
}

func (r *ApplicationRepo) Fail(ctx context.Context, checkoutID, reason string) (*model.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, err := r.resolve(ctx, checkoutID)
	if err != nil {
		return nil, err
	}
	if app.Status != model.ApplicationStatusCompleted {
		app.Status = model.ApplicationStatusFailed
		app.FailureReason = reason
		if err := r.save(ctx, app); err != nil {
			return nil, err
		}
	}
	return app, nil
}
