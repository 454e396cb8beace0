package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"nyota-loan-api/internal/domain"
	"nyota-loan-api/internal/domain/model"
	"nyota-loan-api/internal/domain/ports/repository"
	"nyota-loan-api/internal/infra/logging"
	"nyota-loan-api/internal/infra/metrics"
)

// Compile-time check
var _ ApplicationUseCase = (*applicationUC)(nil)

// SubmitInput carries the caller-supplied fields of a loan application.
type SubmitInput struct {
	FullName    string
	PhoneNumber string
	IDNumber    string
	LoanAmount  int64
	Fee         int64
}

type ApplicationUseCase interface {
	// Submit validates the input, computes the repayment quote and registers
	// a pending application under a fresh application id.
	Submit(ctx context.Context, in SubmitInput) (*model.Application, error)
	// Get returns the record reachable by either identifier.
	Get(ctx context.Context, id string) (*model.Application, error)
	// LoanOptions returns the quoted catalog and the lending terms.
	LoanOptions(ctx context.Context) ([]model.QuotedOption, model.LoanTerms)
}

type applicationUC struct {
	apps repository.ApplicationRepository
	log  *zerolog.Logger
}

func NewApplicationUseCase(apps repository.ApplicationRepository, logger *zerolog.Logger) *applicationUC {
	return &applicationUC{apps: apps, log: logger}
}

func (u *applicationUC) Submit(ctx context.Context, in SubmitInput) (*model.Application, error) {
	if in.FullName == "" || in.PhoneNumber == "" {
		metrics.IncApplication("rejected")
		return nil, fmt.Errorf("%w: full name and phone number are required", domain.ErrInvalidArgument)
	}

	idNumber := in.IDNumber
	if idNumber == "" {
		idNumber = model.DefaultIDNumber
	}

	now := time.Now().UTC()
	payout := now.Add(24 * time.Hour)
	app := &model.Application{
		ApplicationID:   model.NewApplicationID(now),
		FullName:        in.FullName,
		PhoneNumber:     in.PhoneNumber,
		IDNumber:        idNumber,
		LoanAmount:      in.LoanAmount,
		ProcessingFee:   in.Fee,
		Interest:        model.InterestOn(in.LoanAmount),
		TotalRepayment:  model.TotalRepaymentOn(in.LoanAmount, in.Fee),
		Status:          model.ApplicationStatusPending,
		SubmittedAt:     now,
		EstimatedPayout: &payout,
	}
	if err := u.apps.Create(ctx, app); err != nil {
		return nil, err
	}

	metrics.IncApplication("accepted")
	logging.With(ctx, u.log).Info().
		Str("application_id", app.ApplicationID).
		Int64("loan_amount", app.LoanAmount).
		Msg("application submitted")
	return app, nil
}

func (u *applicationUC) Get(ctx context.Context, id string) (*model.Application, error) {
	return u.apps.FindByID(ctx, id)
}

func (u *applicationUC) LoanOptions(ctx context.Context) ([]model.QuotedOption, model.LoanTerms) {
	return model.LoanOptions(), model.Terms()
}
