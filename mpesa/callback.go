package mpesa

// CallbackEnvelope is the asynchronous result notification Daraja POSTs to
// the registered callback URL once the customer acts on (or abandons) the
// STK prompt.
type CallbackEnvelope struct {
	Body struct {
		StkCallback *StkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

type MetadataItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value"`
}

const receiptItemName = "MpesaReceiptNumber"

// ReceiptNumber extracts the M-Pesa receipt from the callback metadata.
// Metadata is only present on successful callbacks, and even then the
// receipt item is not guaranteed.
func (cb *StkCallback) ReceiptNumber() (string, bool) {
	if cb.CallbackMetadata == nil {
		return "", false
	}
	for _, item := range cb.CallbackMetadata.Item {
		if item.Name != receiptItemName {
			continue
		}
		if s, ok := item.Value.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

// Succeeded reports whether the customer completed the payment.
func (cb *StkCallback) Succeeded() bool {
	return cb.ResultCode == 0
}
