// Package protocol defines the x402 wire data model: payment requirements,
// the signed payment payload, and the facilitator's verify/settle request
// and response bodies. Field names match the x402 specification exactly —
// they form the EIP-3009/EIP-712 canonical struct and the facilitator HTTP
// contract, so they are not renamed for Go convention.
package protocol

// X402Version is the only protocol version this module speaks.
const X402Version = 1

// SchemeExact is the only payment scheme this module implements.
const SchemeExact = "exact"

const (
	// HeaderPayment carries the base64-encoded PaymentPayload on the request.
	HeaderPayment = "X-PAYMENT"
	// HeaderPaymentResponse carries the base64-encoded settlement receipt on the response.
	HeaderPaymentResponse = "X-PAYMENT-RESPONSE"
)

// PaymentRequirements is the resource server's 402 challenge.
type PaymentRequirements struct {
	Scheme            string                 `json:"scheme"`
	Network           string                 `json:"network"`
	MaxAmountRequired string                 `json:"maxAmountRequired"`
	Resource          string                 `json:"resource"`
	Description       string                 `json:"description"`
	MimeType          string                 `json:"mimeType"`
	OutputSchema      map[string]interface{} `json:"outputSchema,omitempty"`
	PayTo             string                 `json:"payTo"`
	MaxTimeoutSeconds int                    `json:"maxTimeoutSeconds"`
	Asset             string                 `json:"asset"`
	Extra             map[string]interface{} `json:"extra,omitempty"`
}

// ExtraName returns requirements.extra.name, or "" if absent.
func (r PaymentRequirements) ExtraName() string {
	return extraString(r.Extra, "name")
}

// ExtraVersion returns requirements.extra.version, or "" if absent.
func (r PaymentRequirements) ExtraVersion() string {
	return extraString(r.Extra, "version")
}

func extraString(extra map[string]interface{}, key string) string {
	if extra == nil {
		return ""
	}
	v, _ := extra[key].(string)
	return v
}

// ExactPaymentPayload is the EIP-3009 TransferWithAuthorization struct plus
// the signature that authorizes it. This is the inner `payload` of a
// PaymentPayload when scheme == "exact".
type ExactPaymentPayload struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	ValidAfter  string `json:"validAfter"`
	ValidBefore string `json:"validBefore"`
	Nonce       string `json:"nonce"`
	V           int    `json:"v"`
	R           string `json:"r"`
	S           string `json:"s"`
}

// PaymentPayload is the outer envelope carried base64-encoded in the
// X-PAYMENT header. Payload is scheme-dependent; "exact" is the only arm
// today, decoded with DecodeExactPayload.
type PaymentPayload struct {
	X402Version int                    `json:"x402Version"`
	Scheme      string                 `json:"scheme"`
	Network     string                 `json:"network"`
	Payload     map[string]interface{} `json:"payload"`
}

// PaymentRequiredResponse is the 402 body listing acceptable payment methods.
type PaymentRequiredResponse struct {
	X402Version int                   `json:"x402Version"`
	Accepts     []PaymentRequirements `json:"accepts"`
	Error       string                `json:"error,omitempty"`
}

// PaymentResponseHeader is the decoded X-PAYMENT-RESPONSE receipt.
type PaymentResponseHeader struct {
	TxHash    string `json:"txHash"`
	NetworkID string `json:"networkId"`
}

// VerificationRequest is the facilitator's /verify input.
type VerificationRequest struct {
	X402Version         int                 `json:"x402Version"`
	PaymentHeader       string              `json:"paymentHeader"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// VerificationResponse is the facilitator's /verify output.
type VerificationResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
}

// SettlementRequest is the facilitator's /settle input.
type SettlementRequest struct {
	X402Version         int                 `json:"x402Version"`
	PaymentHeader       string              `json:"paymentHeader"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// SettlementResponse is the facilitator's /settle output.
type SettlementResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
	TxHash    string `json:"txHash,omitempty"`
	NetworkID string `json:"networkId,omitempty"`
}

// SupportedKind is one (scheme, network) pair the facilitator can settle.
type SupportedKind struct {
	Scheme  string `json:"scheme"`
	Network string `json:"network"`
}

// SupportedResponse is the facilitator's /supported output.
type SupportedResponse struct {
	Kinds []SupportedKind `json:"kinds"`
}

// ToMap converts an ExactPaymentPayload to the map shape PaymentPayload.Payload expects.
func (p ExactPaymentPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"from":        p.From,
		"to":          p.To,
		"value":       p.Value,
		"validAfter":  p.ValidAfter,
		"validBefore": p.ValidBefore,
		"nonce":       p.Nonce,
		"v":           p.V,
		"r":           p.R,
		"s":           p.S,
	}
}

// DecodeExactPayload parses the scheme-dependent payload map as an
// ExactPaymentPayload. It round-trips through JSON rather than doing ad hoc
// type assertions per field, so a mistyped field surfaces as a single
// decode error. A missing field is not an error: it is left zero-valued.
func DecodeExactPayload(raw map[string]interface{}) (ExactPaymentPayload, error) {
	return decodeExactPayload(raw)
}
