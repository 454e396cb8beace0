package adapter

import (
	"context"
	"strings"
)

// STKPushRequest is a push-payment request. PhoneNumber may be in local
// (07...) or international (254...) format; implementations normalize it.
type STKPushRequest struct {
	PhoneNumber      string
	Amount           int64
	AccountReference string
	TransactionDesc  string
}

// STKPushAck is the gateway's immediate acknowledgment. CheckoutRequestID is
// the correlation id the asynchronous callback is matched against.
type STKPushAck struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// PaymentGateway is the hex port for the mobile-money push-payment provider.
type PaymentGateway interface {
	Name() string

	// AccessToken obtains a short-lived bearer token from the provider's
	// OAuth endpoint. Returns *domain.AuthError on rejection.
	AccessToken(ctx context.Context) (string, error)

	// STKPush authenticates and submits a push-payment request. There is no
	// automatic retry; a failed attempt is surfaced to the caller.
	STKPush(ctx context.Context, req STKPushRequest) (*STKPushAck, error)
}

// NormalizeMSISDN converts a local 07... number to international 254... form.
// Numbers already in international format pass through unchanged.
func NormalizeMSISDN(phone string) string {
	if strings.HasPrefix(phone, "0") {
		return "254" + phone[1:]
	}
	return phone
}
