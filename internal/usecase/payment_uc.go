package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"nyota-loan-api/internal/domain"
	"nyota-loan-api/internal/domain/model"
	"nyota-loan-api/internal/domain/ports/adapter"
	"nyota-loan-api/internal/domain/ports/repository"
	"nyota-loan-api/internal/infra/logging"
	"nyota-loan-api/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// InitiateInput carries the caller-supplied fields of a payment request.
// AccountReference may name an existing application id; when it does, the
// gateway's checkout id is attached to that record instead of creating a new
// one.
type InitiateInput struct {
	PhoneNumber      string
	Amount           int64
	AccountReference string
	TransactionDesc  string
}

type PaymentUseCase interface {
	// Initiate submits an STK push and registers the pending correlation
	// under the gateway's checkout request id.
	Initiate(ctx context.Context, in InitiateInput) (*adapter.STKPushAck, error)
	// HandleCallback reconciles the asynchronous gateway callback with the
	// registry. It never signals retry to the caller: any returned error is
	// for logging only and the transport must still acknowledge.
	HandleCallback(ctx context.Context, env model.CallbackEnvelope) error
}

type paymentUC struct {
	apps    repository.ApplicationRepository
	gateway adapter.PaymentGateway
	log     *zerolog.Logger
}

func NewPaymentUseCase(apps repository.ApplicationRepository, gateway adapter.PaymentGateway, logger *zerolog.Logger) *paymentUC {
	return &paymentUC{apps: apps, gateway: gateway, log: logger}
}

func (u *paymentUC) Initiate(ctx context.Context, in InitiateInput) (*adapter.STKPushAck, error) {
	if in.PhoneNumber == "" || in.Amount <= 0 {
		return nil, fmt.Errorf("%w: phoneNumber and amount are required", domain.ErrInvalidArgument)
	}

	ack, err := u.gateway.STKPush(ctx, adapter.STKPushRequest{
		PhoneNumber:      in.PhoneNumber,
		Amount:           in.Amount,
		AccountReference: in.AccountReference,
		TransactionDesc:  in.TransactionDesc,
	})
	if err != nil {
		var authErr *domain.AuthError
		if errors.As(err, &authErr) {
			metrics.IncSTKPush("auth_failed")
		} else {
			metrics.IncSTKPush("gateway_failed")
		}
		return nil, err
	}

	log := logging.With(ctx, u.log)
	if ack.CheckoutRequestID == "" {
		// Acknowledged without a correlation id; nothing to register, the
		// callback for this push can never be matched.
		metrics.IncSTKPush("rejected")
		log.Warn().Str("response_code", ack.ResponseCode).Msg("stk push ack without checkout request id")
		return ack, nil
	}

	phone := adapter.NormalizeMSISDN(in.PhoneNumber)
	if in.AccountReference != "" {
		if err := u.apps.AttachCheckout(ctx, in.AccountReference, ack.CheckoutRequestID); err == nil {
			metrics.IncSTKPush("acknowledged")
			log.Info().
				Str("application_id", in.AccountReference).
				Str("checkout_request_id", ack.CheckoutRequestID).
				Msg("stk push acknowledged for existing application")
			return ack, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	now := time.Now().UTC()
	app := &model.Application{
		ApplicationID: model.NewApplicationID(now),
		PhoneNumber:   phone,
		LoanAmount:    in.Amount,
		Status:        model.ApplicationStatusPending,
		SubmittedAt:   now,
	}
	if err := u.apps.UpsertByCheckoutID(ctx, ack.CheckoutRequestID, app); err != nil {
		return nil, err
	}

	metrics.IncSTKPush("acknowledged")
	log.Info().
		Str("checkout_request_id", ack.CheckoutRequestID).
		Str("phone", logging.Redact(phone, false)).
		Msg("stk push acknowledged")
	return ack, nil
}

func (u *paymentUC) HandleCallback(ctx context.Context, env model.CallbackEnvelope) error {
	log := logging.With(ctx, u.log)

	raw := env.Body.STKCallback
	if len(raw) == 0 || string(raw) == "null" {
		metrics.IncCallback("malformed")
		log.Warn().Msg("callback without stkCallback body")
		return nil
	}

	var cb model.STKCallback
	if err := json.Unmarshal(raw, &cb); err != nil {
		metrics.IncCallback("malformed")
		log.Warn().Err(err).Msg("malformed stkCallback body")
		return nil
	}

	if cb.ResultCode == 0 {
		app, err := u.apps.Complete(ctx, cb.CheckoutRequestID, cb.ReceiptNumber(), raw, time.Now().UTC())
		if errors.Is(err, domain.ErrNotFound) {
			// The payment succeeded on the gateway side but we have no
			// record, e.g. after a restart.
			metrics.IncCallback("orphaned")
			log.Warn().Str("checkout_request_id", cb.CheckoutRequestID).Msg("callback for unknown checkout request id")
			return nil
		}
		if err != nil {
			metrics.IncCallback("error")
			return err
		}
		metrics.IncCallback("completed")
		log.Info().
			Str("application_id", app.ApplicationID).
			Str("checkout_request_id", cb.CheckoutRequestID).
			Str("receipt", app.MpesaReceipt).
			Msg("payment completed")
		return nil
	}

	app, err := u.apps.Fail(ctx, cb.CheckoutRequestID, cb.ResultDesc)
	if errors.Is(err, domain.ErrNotFound) {
		metrics.IncCallback("orphaned")
		log.Warn().
			Str("checkout_request_id", cb.CheckoutRequestID).
			Int("result_code", cb.ResultCode).
			Msg("failure callback for unknown checkout request id")
		return nil
	}
	if err != nil {
		metrics.IncCallback("error")
		return err
	}
	metrics.IncCallback("failed")
	log.Info().
		Str("application_id", app.ApplicationID).
		Int("result_code", cb.ResultCode).
		Str("result_desc", cb.ResultDesc).
		Msg("payment failed")
	return nil
}
