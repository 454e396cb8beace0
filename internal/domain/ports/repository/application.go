package repository

import (
	"context"
	"encoding/json"
	"time"

	"nyota-loan-api/internal/domain/model"
)

// ApplicationRepository is the registry correlating identifiers to application
// records. Records are canonical by ApplicationID; the gateway's checkout
// request id is a secondary index onto the same record, so a record stays
// reachable by whichever identifier the caller knows at each stage.
//
// Implementations must serialize read-modify-write on the same record
// (two callbacks for one checkout id, a status read racing an update).
type ApplicationRepository interface {
	// Create inserts a new record under its ApplicationID.
	Create(ctx context.Context, app *model.Application) error

	// FindByID resolves either an application id or a checkout request id.
	// Returns domain.ErrNotFound when neither matches.
	FindByID(ctx context.Context, id string) (*model.Application, error)

	// AttachCheckout cross-references an existing application with the
	// checkout id issued by the gateway at payment initiation.
	AttachCheckout(ctx context.Context, applicationID, checkoutID string) error

	// UpsertByCheckoutID inserts or updates the record addressable by the
	// gateway correlation id. Used when payment is initiated without a prior
	// submission.
	UpsertByCheckoutID(ctx context.Context, checkoutID string, app *model.Application) error

	// Complete transitions the record indexed by checkoutID to completed,
	// stamping completedAt and attaching the raw gateway callback.
	Complete(ctx context.Context, checkoutID, receipt string, callback json.RawMessage, at time.Time) (*model.Application, error)

	// Fail transitions the record indexed by checkoutID to failed, recording
	// the gateway's result description.
	Fail(ctx context.Context, checkoutID, reason string) (*model.Application, error)
}
