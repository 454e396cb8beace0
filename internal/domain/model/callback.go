package model

import "encoding/json"

// CallbackEnvelope is the fixed-shape payload Daraja posts to the webhook.
// The stkCallback body is kept raw so the stored record preserves fields we
// don't model.
type CallbackEnvelope struct {
	Body struct {
		STKCallback json.RawMessage `json:"stkCallback"`
	} `json:"Body"`
}

// STKCallback reports the outcome of a previously initiated push payment.
// ResultCode 0 means the payer confirmed; anything else is a failure or
// cancellation described by ResultDesc.
type STKCallback struct {
	MerchantRequestID string           `json:"MerchantRequestID"`
	CheckoutRequestID string           `json:"CheckoutRequestID"`
	ResultCode        int              `json:"ResultCode"`
	ResultDesc        string           `json:"ResultDesc"`
	CallbackMetadata  CallbackMetadata `json:"CallbackMetadata"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

type CallbackItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

// ReceiptNumber extracts the MpesaReceiptNumber metadata item, if present.
func (c *STKCallback) ReceiptNumber() string {
	for _, item := range c.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" {
			if s, ok := item.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}
