package client_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"x402-go/client"
	"x402-go/protocol"
)

const testPrivateKey = "0123456789012345678901234567890123456789012345678901234567890123"

func sampleRequirements() protocol.PaymentRequirements {
	return protocol.PaymentRequirements{
		Scheme:            protocol.SchemeExact,
		Network:           "eip155:84532",
		MaxAmountRequired: "10000",
		PayTo:             "0x2222222222222222222222222222222222222222",
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		MaxTimeoutSeconds: 60,
		Extra: map[string]interface{}{
			"name":    "USD Coin",
			"version": "2",
		},
	}
}

func TestCreatePayment_RoundTripsThroughHeaderDecode(t *testing.T) {
	c, err := client.NewClient(testPrivateKey)
	require.NoError(t, err)

	header, err := c.CreatePayment(sampleRequirements(), 5*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, header)

	raw, err := base64.StdEncoding.DecodeString(header)
	require.NoError(t, err)

	var payload protocol.PaymentPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	require.Equal(t, protocol.SchemeExact, payload.Scheme)
	require.Equal(t, "eip155:84532", payload.Network)

	exact, err := protocol.DecodeExactPayload(payload.Payload)
	require.NoError(t, err)
	require.Equal(t, c.Address(), exact.From)
	require.Equal(t, "0x2222222222222222222222222222222222222222", exact.To)
	require.Equal(t, "10000", exact.Value)
}

func TestCreatePayment_MissingExtraNameFails(t *testing.T) {
	c, err := client.NewClient(testPrivateKey)
	require.NoError(t, err)

	req := sampleRequirements()
	req.Extra = nil

	_, err = c.CreatePayment(req, 5*time.Minute)
	require.Error(t, err)
}

func TestCreatePayment_MissingExtraVersionFails(t *testing.T) {
	c, err := client.NewClient(testPrivateKey)
	require.NoError(t, err)

	req := sampleRequirements()
	req.Extra = map[string]interface{}{"name": "USD Coin"}

	_, err = c.CreatePayment(req, 5*time.Minute)
	require.Error(t, err)
	var perr *client.PaymentError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, client.PaymentConstructionFailed, perr.Kind)
}

type fixedTimeSource struct{ now uint64 }

func (f fixedTimeSource) BlockTimestamp(ctx context.Context) (uint64, error) {
	return f.now, nil
}

func TestWithTimeSource_UsesChainTipInsteadOfWallClock(t *testing.T) {
	c, err := client.NewClient(testPrivateKey)
	require.NoError(t, err)

	chainNow := uint64(2_000_000_000)
	c = c.WithTimeSource(fixedTimeSource{now: chainNow})

	header, err := c.CreatePayment(sampleRequirements(), 5*time.Minute)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(header)
	require.NoError(t, err)
	var payload protocol.PaymentPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	exact, err := protocol.DecodeExactPayload(payload.Payload)
	require.NoError(t, err)

	validBefore, ok := new(big.Int).SetString(exact.ValidBefore, 10)
	require.True(t, ok)
	require.InDelta(t, float64(chainNow)+300, float64(validBefore.Int64()), 2)
}

func TestSelectRequirements_SkipsUnsupportedNetwork(t *testing.T) {
	accepts := []protocol.PaymentRequirements{
		{Scheme: protocol.SchemeExact, Network: "solana:mainnet"},
		sampleRequirements(),
	}
	chosen, err := client.SelectRequirements(accepts)
	require.NoError(t, err)
	require.Equal(t, "eip155:84532", chosen.Network)
}

func TestSelectRequirements_NoneMatchReturnsPaymentError(t *testing.T) {
	_, err := client.SelectRequirements(nil)
	require.Error(t, err)
	var perr *client.PaymentError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, client.NoAcceptedMethods, perr.Kind)
}

func TestHTTPClient_Do_PaysOn402AndRetries(t *testing.T) {
	c, err := client.NewClient(testPrivateKey)
	require.NoError(t, err)

	var sawPayment string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if header := r.Header.Get(protocol.HeaderPayment); header != "" {
			sawPayment = header
			w.Header().Set(protocol.HeaderPaymentResponse, base64.StdEncoding.EncodeToString([]byte(`{"txHash":"0xdead","networkId":"eip155:84532"}`)))
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"ok":true}`))
			return
		}
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(protocol.PaymentRequiredResponse{
			X402Version: protocol.X402Version,
			Accepts:     []protocol.PaymentRequirements{sampleRequirements()},
		})
	}))
	defer srv.Close()

	httpClient := client.NewHTTPClient(c)
	resp, err := httpClient.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, sawPayment)

	receipt, err := client.DecodePaymentResponse(resp)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	require.Equal(t, "0xdead", receipt.TxHash)
}

func TestHTTPClient_Do_DoublePaymentRejectionSurfacesServerRejectedPayment(t *testing.T) {
	c, err := client.NewClient(testPrivateKey)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(protocol.PaymentRequiredResponse{
			X402Version: protocol.X402Version,
			Accepts:     []protocol.PaymentRequirements{sampleRequirements()},
			Error:       "invalid_payment",
		})
	}))
	defer srv.Close()

	httpClient := client.NewHTTPClient(c)
	_, err = httpClient.Get(srv.URL)
	require.Error(t, err)
	var perr *client.PaymentError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, client.ServerRejectedPayment, perr.Kind)
}
