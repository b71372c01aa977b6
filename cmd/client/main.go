// Command client demonstrates the full 402-challenge/pay/retry flow
// against a resource server protected by x402 payment middleware.
package main

import (
	"fmt"
	"io"
	"os"

	"x402-go/chain"
	"x402-go/client"
	"x402-go/config"
)

func main() {
	config.Load()

	cfg, err := config.LoadClientConfig()
	if err != nil {
		fmt.Printf("config error: %v\n", err)
		os.Exit(1)
	}

	signer, err := client.NewClient(cfg.PrivateKey)
	if err != nil {
		fmt.Printf("invalid client private key: %v\n", err)
		os.Exit(1)
	}

	if cfg.RPCURL != "" {
		if backend, err := chain.Dial(cfg.RPCURL); err == nil {
			signer = signer.WithTimeSource(backend)
		} else {
			fmt.Printf("warning: could not dial RPC_URL for chain-tip time, using local clock: %v\n", err)
		}
	}

	fmt.Printf("client address: %s\n", signer.Address())
	fmt.Printf("requesting:     %s\n", cfg.ServerURL)

	httpClient := client.NewHTTPClient(signer)
	resp, err := httpClient.Get(cfg.ServerURL)
	if err != nil {
		fmt.Printf("request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("failed to read response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("status: %d\n", resp.StatusCode)
	fmt.Printf("body:   %s\n", string(body))

	if receipt, err := client.DecodePaymentResponse(resp); err == nil && receipt != nil {
		fmt.Printf("paid: txHash=%s network=%s\n", receipt.TxHash, receipt.NetworkID)
	}
}
