// Command facilitator runs the x402 facilitator HTTP surface: /verify,
// /settle, /supported, /health.
package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"x402-go/chain"
	"x402-go/config"
	"x402-go/facilitator"
	"x402-go/httpapi"
	"x402-go/protocol"
)

func main() {
	config.Load()

	cfg, err := config.LoadFacilitatorConfig()
	if err != nil {
		fmt.Printf("config error: %v\n", err)
		os.Exit(1)
	}

	backend, err := chain.Dial(cfg.RPCURL)
	if err != nil {
		fmt.Printf("failed to connect to RPC: %v\n", err)
		os.Exit(1)
	}

	settler, err := facilitator.NewSettler(backend, cfg.FacilitatorPrivKey, cfg.MaxGasPriceGwei)
	if err != nil {
		fmt.Printf("failed to initialize settler: %v\n", err)
		os.Exit(1)
	}

	f := &httpapi.Facilitator{
		Verifier: facilitator.NewVerifier(backend),
		Settler:  settler,
		Supports: []protocol.SupportedKind{
			{Scheme: protocol.SchemeExact, Network: cfg.Network},
		},
	}

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(f)

	fmt.Printf("facilitator listening on :%s\n", cfg.Port)
	fmt.Printf("  submitter: %s\n", settler.Address())
	fmt.Printf("  network:   %s\n", cfg.Network)

	if err := router.Run(":" + cfg.Port); err != nil {
		fmt.Printf("server error: %v\n", err)
		os.Exit(1)
	}
}
