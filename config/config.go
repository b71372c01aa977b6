// Package config loads typed configuration from the environment (and an
// optional .env file) for this module's three entrypoints: the
// facilitator, the resource server, and the client demo.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load reads a .env file if present; a missing file is not an error, since
// production deployments supply the environment directly.
func Load() {
	_ = godotenv.Load()
}

func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s environment variable is required", key)
	}
	return v, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// FacilitatorConfig configures cmd/facilitator: the RPC endpoint it reads
// the chain through and the private key it submits settlements with.
type FacilitatorConfig struct {
	RPCURL              string
	FacilitatorPrivKey  string
	MaxGasPriceGwei     int64
	Network             string
	Port                string
}

// LoadFacilitatorConfig builds a FacilitatorConfig from the environment,
// failing fast (matching the original implementation's raise ValueError on
// missing required settings) rather than starting with a zero-valued,
// silently broken configuration.
func LoadFacilitatorConfig() (*FacilitatorConfig, error) {
	rpcURL, err := requireEnv("RPC_URL")
	if err != nil {
		return nil, err
	}
	privKey, err := requireEnv("FACILITATOR_PRIVATE_KEY")
	if err != nil {
		return nil, err
	}
	return &FacilitatorConfig{
		RPCURL:             rpcURL,
		FacilitatorPrivKey: privKey,
		MaxGasPriceGwei:    int64(envIntOr("MAX_GAS_PRICE_GWEI", 0)),
		Network:            envOr("NETWORK", "eip155:84532"),
		Port:               envOr("PORT", "4021"),
	}, nil
}

// ResourceServerConfig configures cmd/resourceserver: the protected
// resource's price and token domain, and where to reach the facilitator.
type ResourceServerConfig struct {
	Network        string
	PayTo          string
	Asset          string
	AssetName      string
	AssetVersion   string
	AssetDecimals  int
	FacilitatorURL string
	Port           string
}

// LoadResourceServerConfig builds a ResourceServerConfig from the environment.
func LoadResourceServerConfig() (*ResourceServerConfig, error) {
	payTo, err := requireEnv("RESOURCE_SERVER_ADDRESS")
	if err != nil {
		return nil, err
	}
	asset, err := requireEnv("TOKEN_CONTRACT_ADDRESS")
	if err != nil {
		return nil, err
	}
	return &ResourceServerConfig{
		Network:        envOr("NETWORK", "eip155:84532"),
		PayTo:          payTo,
		Asset:          asset,
		AssetName:      envOr("TOKEN_NAME", "USD Coin"),
		AssetVersion:   envOr("TOKEN_VERSION", "2"),
		AssetDecimals:  envIntOr("TOKEN_DECIMALS", 6),
		FacilitatorURL: envOr("FACILITATOR_URL", "http://localhost:4021"),
		Port:           envOr("PORT", "4022"),
	}, nil
}

// ClientConfig configures cmd/client: the payer's key and the RPC used to
// read the chain tip timestamp for validAfter/validBefore construction.
type ClientConfig struct {
	PrivateKey string
	RPCURL     string
	ServerURL  string
}

// LoadClientConfig builds a ClientConfig from the environment.
func LoadClientConfig() (*ClientConfig, error) {
	privKey, err := requireEnv("CLIENT_PRIVATE_KEY")
	if err != nil {
		return nil, err
	}
	return &ClientConfig{
		PrivateKey: privKey,
		RPCURL:     envOr("RPC_URL", ""),
		ServerURL:  envOr("SERVER_URL", "http://localhost:4022/weather"),
	}, nil
}
