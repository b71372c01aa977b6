package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"x402-go/facilitator"
	"x402-go/httpapi"
	"x402-go/protocol"
)

type alwaysNowTimeSource struct{}

func (alwaysNowTimeSource) BlockTimestamp(ctx context.Context) (uint64, error) {
	return 0, nil
}

func TestHealthAndSupported(t *testing.T) {
	f := &httpapi.Facilitator{
		Verifier: facilitator.NewVerifier(alwaysNowTimeSource{}),
		Supports: []protocol.SupportedKind{{Scheme: protocol.SchemeExact, Network: "eip155:84532"}},
	}
	router := httpapi.NewRouter(f)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/supported", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var supported protocol.SupportedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &supported))
	require.Len(t, supported.Kinds, 1)
}

func TestVerifyEndpointRejectsMalformedBody(t *testing.T) {
	f := &httpapi.Facilitator{Verifier: facilitator.NewVerifier(alwaysNowTimeSource{})}
	router := httpapi.NewRouter(f)

	req := httptest.NewRequest(http.MethodPost, "/verify", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyEndpointReturnsInvalidForBadHeader(t *testing.T) {
	f := &httpapi.Facilitator{Verifier: facilitator.NewVerifier(alwaysNowTimeSource{})}
	router := httpapi.NewRouter(f)

	body, err := json.Marshal(protocol.VerificationRequest{
		X402Version:   protocol.X402Version,
		PaymentHeader: "not-valid-base64!!",
		PaymentRequirements: protocol.PaymentRequirements{
			Scheme:  protocol.SchemeExact,
			Network: "eip155:84532",
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/verify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp protocol.VerificationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.IsValid)
}
