// Package middleware wraps an http.Handler with the 402 challenge/settle
// flow: unpaid requests get a PaymentRequiredResponse, paid requests are
// settled against a facilitator before the wrapped handler runs.
package middleware

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"x402-go/evm"
	"x402-go/protocol"
)

// facilitatorSettleTimeout bounds the /settle round-trip the middleware
// makes on every paid request; it does not bound the client's own request.
const facilitatorSettleTimeout = 120 * time.Second

// Config describes the resource this middleware protects: the chain,
// token, and payee it mints PaymentRequirements against, plus the
// facilitator it delegates settlement to.
type Config struct {
	Network        string // "eip155:<chainId>"
	Asset          string // token contract address
	AssetName      string // EIP-712 domain name, e.g. "USD Coin"
	AssetVersion   string // EIP-712 domain version, e.g. "2"
	AssetDecimals  int
	PayTo          string
	FacilitatorURL string
	HTTPClient     *http.Client
	OutputSchema   map[string]interface{} // validated once at registration, not per-request
}

// RequirePayment wraps next with the payment requirement (amountUSD,
// description) for the resource at path. It panics if cfg.OutputSchema is
// set but malformed — a broken schema is a server misconfiguration that
// must fail at startup, not leak to the first paying client.
func RequirePayment(cfg Config, amountUSD float64, description string) func(http.Handler) http.Handler {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: facilitatorSettleTimeout}
	}
	if err := ValidateOutputSchema(cfg.OutputSchema); err != nil {
		panic(fmt.Sprintf("middleware: %v", err))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requirements, err := buildRequirements(cfg, amountUSD, description, r.URL.Path)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			header := r.Header.Get(protocol.HeaderPayment)
			if header == "" {
				writePaymentRequired(w, requirements, "")
				return
			}

			settleResp, status, err := settle(r.Context(), cfg, header, requirements)
			switch {
			case err != nil:
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			case status == http.StatusRequestTimeout:
				http.Error(w, "facilitator timeout", http.StatusRequestTimeout)
				return
			case status != http.StatusOK:
				writePaymentRequired(w, requirements, fmt.Sprintf("facilitator returned status %d", status))
				return
			case !settleResp.Success:
				writePaymentRequired(w, requirements, settleResp.Error)
				return
			}

			receipt := protocol.PaymentResponseHeader{TxHash: settleResp.TxHash, NetworkID: settleResp.NetworkID}
			receiptJSON, err := json.Marshal(receipt)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set(protocol.HeaderPaymentResponse, base64.StdEncoding.EncodeToString(receiptJSON))
			next.ServeHTTP(w, r)
		})
	}
}

// buildRequirements is deterministic in (cfg, amountUSD, description, path)
// so a retry recomputes byte-identical requirements to the ones the client
// originally signed against. amountUSD is formatted with a fixed-point verb,
// not %g/%e, since ParseAmount parses decimal strings and cannot handle the
// scientific notation Go's %g emits for small values (e.g. 0.00001 -> "1e-05").
func buildRequirements(cfg Config, amountUSD float64, description, path string) (protocol.PaymentRequirements, error) {
	amountStr := strconv.FormatFloat(amountUSD, 'f', -1, 64)
	atomicAmount, err := evm.ParseAmount(amountStr, cfg.AssetDecimals)
	if err != nil {
		return protocol.PaymentRequirements{}, fmt.Errorf("build payment requirements: %w", err)
	}
	return protocol.PaymentRequirements{
		Scheme:            protocol.SchemeExact,
		Network:           cfg.Network,
		MaxAmountRequired: atomicAmount.String(),
		Resource:          path,
		Description:       description,
		MimeType:          "application/json",
		OutputSchema:      cfg.OutputSchema,
		PayTo:             cfg.PayTo,
		MaxTimeoutSeconds: 60,
		Asset:             cfg.Asset,
		Extra: map[string]interface{}{
			"name":    cfg.AssetName,
			"version": cfg.AssetVersion,
		},
	}, nil
}

func writePaymentRequired(w http.ResponseWriter, requirements protocol.PaymentRequirements, errMsg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	json.NewEncoder(w).Encode(protocol.PaymentRequiredResponse{
		X402Version: protocol.X402Version,
		Accepts:     []protocol.PaymentRequirements{requirements},
		Error:       errMsg,
	})
}

func settle(ctx context.Context, cfg Config, header string, requirements protocol.PaymentRequirements) (*protocol.SettlementResponse, int, error) {
	reqBody := protocol.SettlementRequest{
		X402Version:         protocol.X402Version,
		PaymentHeader:       header,
		PaymentRequirements: requirements,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal settlement request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.FacilitatorURL+"/settle", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build settlement request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: facilitatorSettleTimeout}
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, http.StatusRequestTimeout, nil
		}
		return nil, 0, fmt.Errorf("call facilitator: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}

	var settleResp protocol.SettlementResponse
	if err := json.NewDecoder(resp.Body).Decode(&settleResp); err != nil {
		return nil, 0, fmt.Errorf("decode settlement response: %w", err)
	}
	return &settleResp, resp.StatusCode, nil
}
