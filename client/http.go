package client

import (
	"bytes"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"x402-go/protocol"
)

// defaultValidDuration is how long a constructed authorization stays
// spendable once Do signs it; the challenge's maxTimeoutSeconds does not
// change it.
const defaultValidDuration = 5 * time.Minute

// HTTPClient drives the 402-challenge/retry flow: issue a request, and on
// a 402 response, sign a payment for the first acceptable method and
// replay the request with the X-PAYMENT header attached.
type HTTPClient struct {
	signer     *Client
	httpClient *http.Client
}

// NewHTTPClient wraps signer with an *http.Client configured with a TLS
// floor of 1.2; this package does not shim around broken TLS stacks.
func NewHTTPClient(signer *Client) *HTTPClient {
	return &HTTPClient{
		signer: signer,
		httpClient: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
	}
}

// Do performs req, paying automatically if the server responds 402. req's
// body, if any, must support being read twice (e.g. bytes.Reader) since a
// 402 response requires replaying it with the payment header attached.
func (h *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newPaymentError(PaymentConstructionFailed, "read 402 challenge body: %v", err)
	}

	// Probe the version before committing to a full PaymentRequiredResponse
	// unmarshal, so a challenge from an incompatible protocol version is
	// rejected with a clear error instead of silently decoding into a
	// zero-valued Accepts list.
	if version, err := protocol.DetectVersion(body); err != nil {
		return nil, newPaymentError(PaymentConstructionFailed, "detect 402 challenge version: %v", err)
	} else if version != protocol.X402Version {
		return nil, newPaymentError(PaymentConstructionFailed, "unsupported x402Version in 402 challenge: %d", version)
	}

	var challenge protocol.PaymentRequiredResponse
	if err := json.Unmarshal(body, &challenge); err != nil {
		return nil, newPaymentError(PaymentConstructionFailed, "decode 402 challenge: %v", err)
	}

	requirements, err := SelectRequirements(challenge.Accepts)
	if err != nil {
		return nil, err
	}

	header, err := h.signer.CreatePayment(*requirements, defaultValidDuration)
	if err != nil {
		return nil, err
	}

	retryReq := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		retryReq.Body = body
	}
	retryReq.Header.Set(protocol.HeaderPayment, header)

	retryResp, err := h.httpClient.Do(retryReq)
	if err != nil {
		return nil, fmt.Errorf("paid retry failed: %w", err)
	}
	if retryResp.StatusCode == http.StatusPaymentRequired {
		body, _ := io.ReadAll(retryResp.Body)
		retryResp.Body.Close()
		return nil, newPaymentError(ServerRejectedPayment, "server rejected payment: %s", string(body))
	}
	return retryResp, nil
}

// Get performs a GET request with automatic payment handling.
func (h *HTTPClient) Get(url string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return h.Do(req)
}

// Post performs a POST request with automatic payment handling. body is
// buffered so the paid retry can replay it.
func (h *HTTPClient) Post(url, contentType string, body []byte) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	return h.Do(req)
}

// DecodePaymentResponse extracts the settlement receipt from a response's
// X-PAYMENT-RESPONSE header, if present.
func DecodePaymentResponse(resp *http.Response) (*protocol.PaymentResponseHeader, error) {
	encoded := resp.Header.Get(protocol.HeaderPaymentResponse)
	if encoded == "" {
		return nil, nil
	}
	var out protocol.PaymentResponseHeader
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode X-PAYMENT-RESPONSE: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal X-PAYMENT-RESPONSE: %w", err)
	}
	return &out, nil
}
