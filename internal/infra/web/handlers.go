package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"nyota-loan-api/internal/domain"
	"nyota-loan-api/internal/domain/model"
	"nyota-loan-api/internal/domain/ports/adapter"
	red "nyota-loan-api/internal/infra/redis"
	"nyota-loan-api/internal/usecase"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status    string  `json:"status"`
		Timestamp string  `json:"timestamp"`
		Service   string  `json:"service"`
		Version   string  `json:"version"`
		Uptime    float64 `json:"uptime"`
	}{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   serviceName,
		Version:   version,
		Uptime:    time.Since(s.startedAt).Seconds(),
	})
}

func (s *Server) handleLoanOptions(w http.ResponseWriter, r *http.Request) {
	options, terms := s.appUC.LoanOptions(r.Context())
	writeJSON(w, http.StatusOK, struct {
		Success bool                 `json:"success"`
		Data    []model.QuotedOption `json:"data"`
		Terms   model.LoanTerms      `json:"terms"`
	}{
		Success: true,
		Data:    options,
		Terms:   terms,
	})
}

// submitRequest accepts loanAmount/fee as JSON numbers or numeric strings;
// the web front end is not consistent about which it sends.
type submitRequest struct {
	FullName    string      `json:"fullName"`
	PhoneNumber string      `json:"phoneNumber"`
	IDNumber    string      `json:"idNumber"`
	LoanAmount  json.Number `json:"loanAmount"`
	Fee         json.Number `json:"fee"`
}

func (s *Server) handleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	app, err := s.appUC.Submit(r.Context(), usecase.SubmitInput{
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		IDNumber:    req.IDNumber,
		LoanAmount:  asInt64(req.LoanAmount),
		Fee:         asInt64(req.Fee),
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, "Full name and phone number are required", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to submit application", nil)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success       bool               `json:"success"`
		Message       string             `json:"message"`
		ApplicationID string             `json:"applicationId"`
		Data          *model.Application `json:"data"`
	}{
		Success:       true,
		Message:       "Application submitted successfully",
		ApplicationID: app.ApplicationID,
		Data:          app,
	})
}

type initiatePaymentRequest struct {
	PhoneNumber      string      `json:"phoneNumber"`
	Amount           json.Number `json:"amount"`
	AccountReference string      `json:"accountReference"`
	TransactionDesc  string      `json:"transactionDesc"`
}

func (s *Server) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req initiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	amount := asInt64(req.Amount)
	if req.PhoneNumber == "" || amount <= 0 {
		writeError(w, http.StatusBadRequest, "phoneNumber and amount are required", nil)
		return
	}

	if s.limiter != nil {
		key := red.PhoneKey(adapter.NormalizeMSISDN(req.PhoneNumber))
		allowed, err := s.limiter.Allow(ctx, key, s.rateLimit.Limit, s.rateLimit.Window)
		if err != nil {
			s.log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		} else if !allowed {
			writeError(w, http.StatusTooManyRequests, "Too many payment requests, please wait before retrying", nil)
			return
		}
	}

	ack, err := s.payUC.Initiate(ctx, usecase.InitiateInput{
		PhoneNumber:      req.PhoneNumber,
		Amount:           amount,
		AccountReference: req.AccountReference,
		TransactionDesc:  req.TransactionDesc,
	})
	if err != nil {
		s.writeInitiateError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool                `json:"success"`
		Message string              `json:"message"`
		Data    *adapter.STKPushAck `json:"data"`
	}{
		Success: true,
		Message: "STK push request sent",
		Data:    ack,
	})
}

// writeInitiateError maps the payment error taxonomy onto HTTP statuses,
// forwarding gateway payloads when available.
func (s *Server) writeInitiateError(w http.ResponseWriter, err error) {
	var authErr *domain.AuthError
	var gwErr *domain.GatewayError
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "phoneNumber and amount are required", nil)
	case errors.Is(err, domain.ErrMissingConfig):
		writeError(w, http.StatusInternalServerError, "Payment gateway is not configured", nil)
	case errors.As(err, &authErr):
		writeError(w, http.StatusInternalServerError, "Failed to authenticate with payment gateway", errorDetail(authErr.Body))
	case errors.As(err, &gwErr):
		writeError(w, http.StatusInternalServerError, "Failed to initiate payment", errorDetail(gwErr.Body))
	default:
		writeError(w, http.StatusInternalServerError, "Failed to initiate payment", nil)
	}
}

// handleCallback acknowledges unconditionally: the contract with the gateway
// is "always ack, never signal retry".
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	var env model.CallbackEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		s.log.Warn().Err(err).Msg("undecodable gateway callback")
	} else if err := s.payUC.HandleCallback(r.Context(), env); err != nil {
		s.log.Error().Err(err).Msg("callback processing failed")
	}

	writeJSON(w, http.StatusOK, struct {
		ResultCode int    `json:"ResultCode"`
		ResultDesc string `json:"ResultDesc"`
	}{ResultCode: 0, ResultDesc: "Success"})
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	app, err := s.appUC.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Application not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get application", nil)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool               `json:"success"`
		Data    *model.Application `json:"data"`
	}{Success: true, Data: app})
}

func asInt64(n json.Number) int64 {
	v, err := n.Int64()
	if err != nil {
		if f, ferr := n.Float64(); ferr == nil {
			return int64(f)
		}
		return 0
	}
	return v
}
