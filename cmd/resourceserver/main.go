// Command resourceserver runs a minimal resource server gated by the x402
// payment middleware: GET /weather returns a canned forecast once paid.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"x402-go/config"
	"x402-go/middleware"
)

func main() {
	config.Load()

	cfg, err := config.LoadResourceServerConfig()
	if err != nil {
		fmt.Printf("config error: %v\n", err)
		os.Exit(1)
	}

	mwCfg := middleware.Config{
		Network:        cfg.Network,
		Asset:          cfg.Asset,
		AssetName:      cfg.AssetName,
		AssetVersion:   cfg.AssetVersion,
		AssetDecimals:  cfg.AssetDecimals,
		PayTo:          cfg.PayTo,
		FacilitatorURL: cfg.FacilitatorURL,
	}

	weather := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"location":    "San Francisco",
			"temperature": 62,
			"conditions":  "foggy",
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/weather", middleware.RequirePayment(mwCfg, 0.01, "weather forecast")(weather))

	fmt.Printf("resource server listening on :%s\n", cfg.Port)
	fmt.Printf("  payTo:       %s\n", cfg.PayTo)
	fmt.Printf("  facilitator: %s\n", cfg.FacilitatorURL)

	if err := http.ListenAndServe(":"+cfg.Port, mux); err != nil {
		fmt.Printf("server error: %v\n", err)
		os.Exit(1)
	}
}
