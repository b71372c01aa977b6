package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Dial connects to rpcURL and wraps the resulting client as a Backend and
// TimeSource.
func Dial(rpcURL string) (*EthClientBackend, error) {
	c, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return NewEthClientBackend(c), nil
}
