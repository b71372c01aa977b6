package evm

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseAmount converts a decimal string amount (e.g. "0.01") into atomic
// units at the given decimals, truncating (flooring) any precision beyond
// decimals rather than rounding.
func ParseAmount(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimPrefix(amount, "$")
	parts := strings.SplitN(amount, ".", 2)
	if len(parts) > 2 {
		return nil, fmt.Errorf("invalid amount format: %s", amount)
	}

	intPart, ok := new(big.Int).SetString(parts[0], 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer part: %s", parts[0])
	}

	decPart := new(big.Int)
	if len(parts) == 2 && parts[1] != "" {
		decStr := parts[1]
		if len(decStr) > decimals {
			decStr = decStr[:decimals]
		} else {
			decStr += strings.Repeat("0", decimals-len(decStr))
		}
		decPart, ok = new(big.Int).SetString(decStr, 10)
		if !ok {
			return nil, fmt.Errorf("invalid decimal part: %s", parts[1])
		}
	}

	multiplier := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	result := new(big.Int).Mul(intPart, multiplier)
	result.Add(result, decPart)
	return result, nil
}
