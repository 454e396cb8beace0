package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "pending"   // submitted and/or STK push sent; awaiting callback
	ApplicationStatusCompleted ApplicationStatus = "completed" // gateway confirmed the payment
	ApplicationStatusFailed    ApplicationStatus = "failed"    // gateway reported failure or cancellation
)

// Application is one loan request and its payment lifecycle. ApplicationID is
// the canonical identifier; CheckoutRequestID is the gateway correlation id
// attached once an STK push is acknowledged.
type Application struct {
	ApplicationID     string            `json:"applicationId"`
	FullName          string            `json:"fullName,omitempty"`
	PhoneNumber       string            `json:"phoneNumber"`
	IDNumber          string            `json:"idNumber,omitempty"`
	LoanAmount        int64             `json:"loanAmount"`
	ProcessingFee     int64             `json:"processingFee"`
	Interest          int64             `json:"interest"`
	TotalRepayment    int64             `json:"totalRepayment"`
	Status            ApplicationStatus `json:"status"`
	SubmittedAt       time.Time         `json:"submittedAt"`
	EstimatedPayout   *time.Time        `json:"estimatedDisbursement,omitempty"`
	CompletedAt       *time.Time        `json:"completedAt,omitempty"`
	CheckoutRequestID string            `json:"checkoutRequestId,omitempty"`
	MpesaReceipt      string            `json:"mpesaReceipt,omitempty"`
	FailureReason     string            `json:"failureReason,omitempty"`
	GatewayCallback   json.RawMessage   `json:"gatewayCallback,omitempty"`
}

// DefaultIDNumber is the sentinel stored when the caller omits idNumber.
const DefaultIDNumber = "N/A"

// Interest is 10% of the principal for the fixed 2-month term.
func InterestOn(amount int64) int64 {
	return int64(math.Round(float64(amount) * 0.10))
}

// TotalRepayment = principal + processing fee + interest.
func TotalRepaymentOn(amount, fee int64) int64 {
	return amount + fee + InterestOn(amount)
}

// NewApplicationID generates an externally visible id of the form
// NYOTA-<epoch millis>-<alnum suffix>. The time+random suffix makes collisions
// negligible; the registry does not re-check.
func NewApplicationID(now time.Time) string {
	entropy := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
	suffix := strings.ToLower(entropy[len(entropy)-8:])
	return fmt.Sprintf("NYOTA-%d-%s", now.UnixMilli(), suffix)
}
