// Package httpapi exposes a facilitator.Verifier and facilitator.Settler
// over HTTP via gin: /verify, /settle, /supported, /health.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"x402-go/facilitator"
	"x402-go/protocol"
)

// verifyTimeout and settleTimeout bound each request's server-side work;
// they are independent of any client-side timeout.
const (
	verifyTimeout = 30 * time.Second
	settleTimeout = 60 * time.Second
)

// Facilitator bundles the verifier/settler pair and the capability set the
// router advertises at /supported.
type Facilitator struct {
	Verifier *facilitator.Verifier
	Settler  *facilitator.Settler
	Supports []protocol.SupportedKind
}

// NewRouter builds the gin engine exposing f's four endpoints.
func NewRouter(f *Facilitator) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"verifier": f.Verifier != nil,
			"settler":  f.Settler != nil,
		})
	})

	r.GET("/supported", func(c *gin.Context) {
		c.JSON(http.StatusOK, protocol.SupportedResponse{Kinds: f.Supports})
	})

	r.POST("/verify", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), verifyTimeout)
		defer cancel()

		var req protocol.VerificationRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		resp, _, err := f.Verifier.Verify(ctx, req.PaymentHeader, req.PaymentRequirements)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	r.POST("/settle", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), settleTimeout)
		defer cancel()

		var req protocol.SettlementRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		resp := handleSettle(ctx, f, req)
		c.JSON(http.StatusOK, resp)
	})

	return r
}

// handleSettle runs verification, then settlement if valid. Every expected
// failure returns success=false with HTTP 200 — the facilitator never
// surfaces a business-logic rejection as a transport error.
func handleSettle(ctx context.Context, f *Facilitator, req protocol.SettlementRequest) protocol.SettlementResponse {
	verifyResp, payer, err := f.Verifier.Verify(ctx, req.PaymentHeader, req.PaymentRequirements)
	if err != nil {
		return protocol.SettlementResponse{Success: false, Error: "verification failed: " + err.Error()}
	}
	if !verifyResp.IsValid {
		return protocol.SettlementResponse{Success: false, Error: "verification failed: " + verifyResp.InvalidReason}
	}
	_ = payer

	payload, err := protocol.DecodePaymentPayloadHeader(req.PaymentHeader)
	if err != nil {
		return protocol.SettlementResponse{Success: false, Error: err.Error()}
	}
	exact, err := protocol.DecodeExactPayload(payload.Payload)
	if err != nil {
		return protocol.SettlementResponse{Success: false, Error: err.Error()}
	}

	timeout := time.Duration(req.PaymentRequirements.MaxTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = settleTimeout
	}

	result := f.Settler.Settle(ctx, exact, req.PaymentRequirements.Asset, true, timeout)
	if !result.Success {
		resp := protocol.SettlementResponse{Success: false}
		if result.Error != nil {
			resp.Error = result.Error.Error()
		}
		if result.TxHash != "" {
			resp.TxHash = result.TxHash
		}
		return resp
	}

	return protocol.SettlementResponse{
		Success:   true,
		TxHash:    result.TxHash,
		NetworkID: req.PaymentRequirements.Network,
	}
}
